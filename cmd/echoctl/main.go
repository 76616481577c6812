package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/echodev/session"
	"github.com/tailored-agentic-units/echodev/transport"
)

func main() {
	var (
		addr        = flag.String("addr", "http://127.0.0.1:7070", "Device base URL")
		nonblocking = flag.Bool("nonblocking", false, "Open the session in non-blocking mode and retry on contention")
		useJSON     = flag.Bool("json", false, "Use protojson instead of binary protobuf")
	)
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: echoctl [flags] <command> [arg]")
		fmt.Fprintln(os.Stderr, "Commands: write <text|->, read [count], resize <bytes>, capacity, length, max")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 {
		flag.Usage()
		os.Exit(1)
	}

	var opts []connect.ClientOption
	if *useJSON {
		opts = append(opts, connect.WithProtoJSON())
	}
	client := transport.NewClient(http.DefaultClient, *addr, opts...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command, arg := flag.Arg(0), flag.Arg(1)
	if command == "write" && arg == "-" {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			log.Fatalf("Failed to read stdin: %v", err)
		}
		arg = string(data)
	}

	id, err := client.Open(ctx, *nonblocking)
	if err != nil {
		log.Fatalf("Failed to open session: %v", err)
	}

	err = transport.Retry(ctx, func() error {
		return run(ctx, client, id, command, arg)
	})
	if closeErr := client.Close(context.Background(), id); closeErr != nil {
		log.Printf("Failed to close session: %v", closeErr)
	}
	if err != nil {
		log.Fatalf("%s failed: %v", command, err)
	}
}

func run(ctx context.Context, client *transport.Client, id, command, arg string) error {
	switch command {
	case "write":
		data := []byte(arg)
		n, truncated, err := client.Write(ctx, id, data)
		if err != nil {
			return err
		}
		if truncated {
			fmt.Printf("wrote %d of %d bytes (truncated at capacity)\n", n, len(data))
		} else {
			fmt.Printf("wrote %d bytes\n", n)
		}
		return nil

	case "read":
		count := 4096
		if arg != "" {
			v, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("invalid count %q: %w", arg, err)
			}
			count = v
		}
		data, err := client.Read(ctx, id, count)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err

	case "resize":
		size, err := strconv.ParseUint(arg, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid size %q: %w", arg, err)
		}
		if _, err := client.Control(ctx, id, session.CodeResize, size); err != nil {
			return err
		}
		fmt.Printf("capacity set to %d\n", size)
		return nil

	case "capacity", "length", "max":
		code := map[string]session.Code{
			"capacity": session.CodeGetCapacity,
			"length":   session.CodeGetLength,
			"max":      session.CodeGetMaxCapacity,
		}[command]
		v, err := client.Control(ctx, id, code, 0)
		if err != nil {
			return err
		}
		fmt.Println(v)
		return nil

	default:
		return fmt.Errorf("unknown command %q (want %s)", command,
			strings.Join([]string{"write", "read", "resize", "capacity", "length", "max"}, ", "))
	}
}
