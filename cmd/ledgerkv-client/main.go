// Command ledgerkv-client is an RPC client for ledgerkv-server.
//
// Usage:
//
//	ledgerkv-client --server=<address> set <key> <value>
//	ledgerkv-client --server=<address> get <key>
//	ledgerkv-client --server=<address> remove <key>
package main

import (
	"errors"
	"fmt"
	"net/rpc"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"

	"github.com/davros-labs/ledgerkv/service"
)

// defaultServerAddress matches cmd/ledgerkv-server's defaultListenAddress
// so a no-argument client can reach a no-argument server.
const defaultServerAddress = "127.0.0.1:8765"

var errWrongArgCount = errors.New("wrong number of arguments")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run performs one request against the server and returns the process
// exit code: 0 once the request was delivered and answered, whatever its
// logical outcome (key not found, no prior value, and so on); nonzero on a
// transport or usage failure, and also when the engine itself reported an
// error, since the service returns engine errors as the RPC call's error.
func run(args []string, out, errOut *os.File) int {
	flags := pflag.NewFlagSet("ledgerkv-client", pflag.ContinueOnError)
	server := flags.String("server", defaultServerAddress, "ledgerkv-server RPC address")
	if err := flags.Parse(args); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	positional := flags.Args()
	if len(positional) == 0 {
		fmt.Fprintln(errOut, "usage: ledgerkv-client [--server=addr] set|get|remove ...")
		return 1
	}

	client, err := rpc.Dial("tcp", *server)
	if err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}
	defer client.Close()

	switch positional[0] {
	case "set":
		return cmdSet(client, positional[1:], out, errOut)
	case "get":
		return cmdGet(client, positional[1:], out, errOut)
	case "remove":
		return cmdRemove(client, positional[1:], out, errOut)
	default:
		fmt.Fprintln(errOut, "error: unknown subcommand", positional[0])
		return 1
	}
}

func cmdSet(client *rpc.Client, args []string, out, errOut *os.File) int {
	if len(args) != 2 {
		fmt.Fprintln(errOut, "error:", errWrongArgCount, "usage: set <key> <value>")
		return 1
	}

	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(errOut, "error: invalid key:", err)
		return 1
	}

	var resp service.SetResponse
	req := service.SetRequest{Key: key, Value: []byte(args[1])}
	if err := client.Call("Service.Set", req, &resp); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if resp.HadPrior {
		fmt.Fprintf(out, "ok, replaced prior value %q\n", lossyString(resp.OldValue))
	} else {
		fmt.Fprintln(out, "ok, no prior value")
	}
	return 0
}

func cmdGet(client *rpc.Client, args []string, out, errOut *os.File) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error:", errWrongArgCount, "usage: get <key>")
		return 1
	}

	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(errOut, "error: invalid key:", err)
		return 1
	}

	var resp service.GetResponse
	req := service.GetRequest{Key: key}
	if err := client.Call("Service.Get", req, &resp); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if !resp.Exists {
		fmt.Fprintln(out, "not found")
		return 0
	}
	fmt.Fprintln(out, lossyString(resp.Value))
	return 0
}

func cmdRemove(client *rpc.Client, args []string, out, errOut *os.File) int {
	if len(args) != 1 {
		fmt.Fprintln(errOut, "error:", errWrongArgCount, "usage: remove <key>")
		return 1
	}

	key, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		fmt.Fprintln(errOut, "error: invalid key:", err)
		return 1
	}

	var resp service.RemoveResponse
	req := service.RemoveRequest{Key: key}
	if err := client.Call("Service.Remove", req, &resp); err != nil {
		fmt.Fprintln(errOut, "error:", err)
		return 1
	}

	if !resp.HadPrior {
		fmt.Fprintln(out, "no prior value")
		return 0
	}
	fmt.Fprintf(out, "removed, prior value %q\n", lossyString(resp.OldValue))
	return 0
}

// lossyString decodes value as UTF-8, substituting the replacement
// character for any invalid byte sequence, matching the lossy decode the
// original Rust engine (String::from_utf8_lossy) performs at its
// text-facing boundary.
func lossyString(value []byte) string {
	return strings.ToValidUTF8(string(value), "�")
}
