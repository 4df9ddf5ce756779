package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"strings"

	"ctchen222/Tic-Tac-Toe-Referee/pkg/proto"
)

func main() {
	addr := flag.String("addr", "localhost:8888", "referee TCP address")
	local := flag.Bool("local", false, "play both sides on this terminal without a server")
	flag.Parse()

	if *local {
		if err := runLocal(context.Background(), os.Stdin, os.Stdout); err != nil {
			slog.Error("local game stopped", "error", err)
			os.Exit(1)
		}
		return
	}

	conn, err := net.Dial("tcp", *addr)
	if err != nil {
		slog.Error("failed to connect", "addr", *addr, "error", err)
		os.Exit(1)
	}
	defer conn.Close()

	fmt.Fprintln(os.Stdout, "Connected to the Tic Tac Toe server!")
	if err := run(conn, os.Stdin, os.Stdout); err != nil {
		slog.Error("client stopped", "error", err)
		os.Exit(1)
	}
}

// run prints every line the server sends and forwards input lines until the
// user types exit, input ends, or the server hangs up. exit is never sent.
func run(conn net.Conn, in io.Reader, out io.Writer) error {
	serverDone := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(conn)
		for sc.Scan() {
			fmt.Fprintln(out, sc.Text())
		}
		serverDone <- sc.Err()
	}()

	inputDone := make(chan error, 1)
	go func() {
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			line := sc.Text()
			if proto.IsExit(line) {
				inputDone <- nil
				return
			}
			if _, err := io.WriteString(conn, strings.TrimSpace(line)+"\n"); err != nil {
				inputDone <- err
				return
			}
		}
		inputDone <- sc.Err()
	}()

	select {
	case err := <-serverDone:
		if err != nil && !errors.Is(err, net.ErrClosed) {
			return err
		}
		fmt.Fprintln(out, "Server closed the connection.")
		return nil
	case err := <-inputDone:
		// Closing the socket unblocks the reader; it exits on net.ErrClosed.
		_ = conn.Close()
		<-serverDone
		return err
	}
}
