// The Redis port exposes a range sum backend over RESP so any Redis client can query and update the array:
//
//	RSUM left right  -> sum of array[left..right]
//	RSET index value -> OK
//	RGET index       -> array[index]
//	RLEN             -> array length
//	RINFO            -> [cached sums, cache capacity]

package port

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"strings"

	"github.com/tidwall/redcon"
)

const RedisOk = "OK"

var address = flag.String("address", ":6380", "The ip:port to listen on for Redis protocol.")

// redisCommand represents a Redis command with its arguments.
type redisCommand struct {
	command string
	args    []string
}

// redisOutput conforms to a real Redis server output on non pub / sub commands.
type redisOutput struct {
	closeConnection bool    // Closes the connection if true.
	err             *string // Error to return if set.
	writeInt        *int64  // Writes an integer value if set.
	writeInts       []int64 // Writes an array of integers if non-nil.
	writeString     string  // Writes a string value otherwise.
}

func closeRedisConnection(msg string) redisOutput {
	return redisOutput{writeString: msg, closeConnection: true}
}

func writeRedisInt(i int64) redisOutput {
	return redisOutput{writeInt: &i}
}

func writeRedisInts(ints ...int64) redisOutput {
	return redisOutput{writeInts: ints}
}

func writeRedisString(s string) redisOutput {
	return redisOutput{writeString: s}
}

func writeRedisError(err error) redisOutput {
	msg := "ERR " + err.Error()
	return redisOutput{err: &msg}
}

func wrongArgCount(command string) redisOutput {
	return writeRedisError(fmt.Errorf("wrong number of arguments for '%s' command", strings.ToLower(command)))
}

// parseInts converts every argument to an int64.
func parseInts(args []string) ([]int64, error) {
	ints := make([]int64, len(args))
	for i, arg := range args {
		value, err := strconv.ParseInt(arg, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("value is not an integer or out of range: %q", arg)
		}
		ints[i] = value
	}
	return ints, nil
}

type redisHandler struct {
	backend *RangeSumBackend
}

// newRedisHandler creates a new redisHandler.
func newRedisHandler(backend *RangeSumBackend) (*redisHandler, error) {
	if backend == nil {
		return nil, errors.New("expected a non-nil backend")
	}
	return &redisHandler{backend: backend}, nil
}

// expectedArgs is the exact argument count of every data command.
var expectedArgs = map[string]int{"RSUM": 2, "RSET": 2, "RGET": 1, "RLEN": 0, "RINFO": 0}

func (rh *redisHandler) handle(cmd redisCommand) redisOutput {
	command := strings.ToUpper(cmd.command)
	switch command {
	case "PING":
		return writeRedisString("PONG")
	case "QUIT":
		return closeRedisConnection(RedisOk)
	}

	argCount, known := expectedArgs[command]
	if !known {
		return writeRedisError(fmt.Errorf("unknown command '%s'", cmd.command))
	}
	if len(cmd.args) != argCount {
		return wrongArgCount(command)
	}
	args, err := parseInts(cmd.args)
	if err != nil {
		return writeRedisError(err)
	}

	switch command {
	case "RSUM":
		sum, err := rh.backend.Sum(int(args[0]), int(args[1]))
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(sum)
	case "RSET":
		if err := rh.backend.Set(int(args[0]), args[1]); err != nil {
			return writeRedisError(err)
		}
		return writeRedisString(RedisOk)
	case "RGET":
		value, err := rh.backend.Get(int(args[0]))
		if err != nil {
			return writeRedisError(err)
		}
		return writeRedisInt(value)
	case "RLEN":
		return writeRedisInt(int64(rh.backend.Len()))
	default: // RINFO.
		size, capacity := rh.backend.CacheInfo()
		return writeRedisInts(int64(size), int64(capacity))
	}
}

// serve converts a redcon command, runs it and writes the output back to the connection.
func (rh *redisHandler) serve(conn redcon.Conn, cmd redcon.Command) {
	command := redisCommand{command: string(cmd.Args[0]), args: make([]string, len(cmd.Args)-1)}
	for i := 1; i < len(cmd.Args); i++ {
		command.args[i-1] = string(cmd.Args[i])
	}
	output := rh.handle(command)
	switch {
	case output.err != nil:
		conn.WriteError(*output.err)
	case output.writeInt != nil:
		conn.WriteInt64(*output.writeInt)
	case output.writeInts != nil:
		conn.WriteArray(len(output.writeInts))
		for _, value := range output.writeInts {
			conn.WriteInt64(value)
		}
	default:
		conn.WriteString(output.writeString)
	}
	if output.closeConnection {
		if err := conn.Close(); err != nil {
			slog.Error("Failed to close connection.", "error", err)
		}
	}
}

// RunRedisServer serves `backend` over the Redis protocol on the --address flag until `ctx` is cancelled.
func RunRedisServer(ctx context.Context, backend *RangeSumBackend) error {
	if *address == "" {
		return errors.New("expected a non-empty --address flag")
	}
	return runRedisServer(ctx, *address, backend, nil /*onListen*/)
}

// runRedisServer serves on `addr` and calls `onListen`, if set, once the listener is bound.
func runRedisServer(ctx context.Context, addr string, backend *RangeSumBackend, onListen func(net.Addr)) error {
	handler, err := newRedisHandler(backend)
	if err != nil {
		return fmt.Errorf("failed to create a new redis handler: %w", err)
	}

	redisServer := redcon.NewServerNetwork("tcp" /*net*/, addr, handler.serve,
		/*accept*/ func(conn redcon.Conn) bool {
			return true // Accept all connections.
		},
		/*closed*/ func(conn redcon.Conn, err error) {
			if err != nil {
				slog.Debug("Redis connection closed with error.", "remote", conn.RemoteAddr(), "error", err)
			}
		})

	listening := make(chan error, 1)
	serverErrSignal := make(chan error, 1)
	go func() {
		serverErrSignal <- redisServer.ListenServeAndSignal(listening)
		close(serverErrSignal)
	}()
	if err := <-listening; err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	slog.Info("Redis port is listening.", "address", redisServer.Addr().String())
	if onListen != nil {
		onListen(redisServer.Addr())
	}

	select {
	case <-ctx.Done():
		if err := redisServer.Close(); err != nil {
			return fmt.Errorf("failed to close redis server: %w", err)
		}
	case err := <-serverErrSignal:
		if err == nil {
			return errors.New("redis server stopped unexpectedly")
		}
		return fmt.Errorf("redis server stopped unexpectedly: %w", err)
	}

	return nil // Exited with no errors.
}
