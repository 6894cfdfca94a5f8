// Command erlnode runs a standalone node process: it registers with
// EPMD, accepts inbound distribution connections, and serves a local
// admin introspection socket (SPEC_FULL.md §5.4). It exists as a
// worked example of wiring the node package together, grounded on
// krd/main.go's daemon shape.
package main

import (
	"fmt"
	"net"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/fatih/color"
	"github.com/urfave/cli"

	"github.com/distnode/erl/dist"
	"github.com/distnode/erl/internal/elog"
	"github.com/distnode/erl/internal/version"
	"github.com/distnode/erl/node"
)

func run(c *cli.Context) (err error) {
	defer func() {
		if x := recover(); x != nil {
			elog.Log.Error(fmt.Sprintf("run time panic: %v", x))
			elog.Log.Error(string(debug.Stack()))
			panic(x)
		}
	}()

	name := c.String("name")
	if name == "" {
		return cli.NewExitError("erlnode: --name is required, e.g. node1@127.0.0.1", 1)
	}
	cookie := c.String("cookie")
	distPort := c.Int("port")
	adminSocket := c.String("admin-socket")
	stateDir := c.String("state-dir")

	n, err := node.New(node.Options{
		Name:     name,
		Cookie:   cookie,
		StateDir: stateDir,
		DistPort: uint16(distPort),
	})
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("erlnode: failed to start: %v", err), 1)
	}
	defer n.Close(nil)

	acceptor, err := net.Listen("tcp", fmt.Sprintf(":%d", distPort))
	if err != nil {
		return cli.NewExitError(fmt.Sprintf("erlnode: failed to listen: %v", err), 1)
	}
	defer acceptor.Close()

	go func() {
		for {
			nc, err := acceptor.Accept()
			if err != nil {
				elog.Log.Warningf("erlnode: acceptor error: %v", err)
				return
			}
			go func() {
				conn, err := dist.Accept(nc, n.Name, cookie)
				if err != nil {
					elog.Log.Warningf("erlnode: inbound handshake failed: %v", err)
					return
				}
				if err := n.Accept(conn); err != nil {
					elog.Log.Warningf("erlnode: failed to adopt inbound connection: %v", err)
				}
			}()
		}
	}()

	if adminSocket != "" {
		listener, err := node.ListenAdmin(adminSocket)
		if err != nil {
			return cli.NewExitError(fmt.Sprintf("erlnode: failed to open admin socket: %v", err), 1)
		}
		defer listener.Close()
		go func() {
			if err := node.NewAdminServer(n).Serve(listener); err != nil {
				elog.Log.Warningf("erlnode: admin server stopped: %v", err)
			}
		}()
	}

	fmt.Println(color.GreenString("erlnode ▶ %s listening on :%d", name, distPort))

	stopSignal := make(chan os.Signal, 1)
	signal.Notify(stopSignal, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
	sig := <-stopSignal
	elog.Log.Noticef("erlnode: stopping on signal %v", sig)
	return nil
}

func main() {
	enableVirtualTerminal()

	app := cli.NewApp()
	app.Name = "erlnode"
	app.Usage = "run a standalone Erlang distribution protocol node"
	app.Version = version.Current.String()
	app.Flags = []cli.Flag{
		cli.StringFlag{Name: "name, n", Usage: "node name, e.g. node1@127.0.0.1"},
		cli.StringFlag{Name: "cookie, c", Usage: "distribution cookie"},
		cli.IntFlag{Name: "port, p", Usage: "distribution TCP port", Value: 9999},
		cli.StringFlag{Name: "admin-socket", Usage: "Unix socket path for the admin introspection server"},
		cli.StringFlag{Name: "state-dir", Usage: "directory holding the persisted creation counter"},
	}
	app.Action = run
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString(err.Error()))
		os.Exit(1)
	}
}
