// Command paseoctl is a thin command-line client for paseod: every
// subcommand maps to one protocol request over the local WebSocket
// endpoint and prints the matching response.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/getpaseo/paseod/internal/agent"
	"github.com/getpaseo/paseod/internal/protocol"
)

const defaultTimeout = 10 * time.Second

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return 2
	}

	cmd := args[0]
	rest := args[1:]

	switch cmd {
	case "ls":
		fs := flag.NewFlagSet("ls", flag.ContinueOnError)
		a := fs.String("addr", "127.0.0.1:7777", "paseod websocket host:port")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		return lsCmd(*a)

	case "stop":
		fs := flag.NewFlagSet("stop", flag.ContinueOnError)
		a := fs.String("addr", "127.0.0.1:7777", "paseod websocket host:port")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "paseoctl: stop requires an agent id")
			return 2
		}
		return agentCmd(*a, fs.Arg(0), "stop")

	case "logs":
		fs := flag.NewFlagSet("logs", flag.ContinueOnError)
		a := fs.String("addr", "127.0.0.1:7777", "paseod websocket host:port")
		tail := fs.Int("tail", 50, "number of most recent timeline entries to show")
		follow := fs.Bool("f", false, "follow new entries as they arrive")
		if err := fs.Parse(rest); err != nil {
			return 2
		}
		if fs.NArg() != 1 {
			fmt.Fprintln(os.Stderr, "paseoctl: logs requires an agent id")
			return 2
		}
		return logsCmd(*a, fs.Arg(0), *tail, *follow)

	case "agent":
		if len(rest) < 2 {
			fmt.Fprintln(os.Stderr, "paseoctl: agent requires a subcommand and an agent id")
			return 2
		}
		fs := flag.NewFlagSet("agent", flag.ContinueOnError)
		a := fs.String("addr", "127.0.0.1:7777", "paseod websocket host:port")
		tail := fs.Int("tail", 50, "number of most recent timeline entries to show")
		follow := fs.Bool("f", false, "follow new entries as they arrive")
		sub, id := rest[0], rest[1]
		if err := fs.Parse(rest[2:]); err != nil {
			return 2
		}
		switch sub {
		case "stop":
			return agentCmd(*a, id, "stop")
		case "logs":
			return logsCmd(*a, id, *tail, *follow)
		default:
			fmt.Fprintf(os.Stderr, "paseoctl: unknown agent subcommand %q\n", sub)
			return 2
		}

	case "-h", "--help", "help":
		usage()
		return 0

	default:
		fmt.Fprintf(os.Stderr, "paseoctl: unknown command %q\n", cmd)
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: paseoctl <command> [-addr host:port] [args]
       paseoctl agent <stop|logs> <agent-id> [-addr host:port]

commands:
  ls                         list every agent paseod tracks
  stop <agent-id>            cancel one agent's in-flight turn
  logs [-f] [--tail N] <id>  print an agent's recent timeline entries
  agent stop <agent-id>      cancel one agent's in-flight turn
  agent logs <agent-id>      print one agent's recent timeline entries`)
}

func lsCmd(addr string) int {
	conn, err := dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}
	defer conn.Close()

	resp, err := roundTrip(conn, protocol.TypeListAgentsRequest, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}

	var body protocol.ListAgentsResponse
	if err := resp.Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: decoding response: %v\n", err)
		return 1
	}

	fmt.Printf("%-36s %-10s %-10s %s\n", "ID", "PROVIDER", "STATUS", "CWD")
	for _, a := range body.Agents {
		fmt.Printf("%-36s %-10s %-10s %s\n", a.ID, a.Provider, a.Status, a.Cwd)
	}
	return 0
}

// agentCmd sends a "stop" lifecycle action: cancel_agent_request for an
// individual agent (not the daemon-wide shutdown intent, which a client
// sends as a separate "shutdown" envelope).
func agentCmd(addr, agentID, action string) int {
	conn, err := dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}
	defer conn.Close()

	switch action {
	case "stop":
		_, err = roundTrip(conn, protocol.TypeCancelAgentRequest, protocol.AgentIDRequest{AgentID: agent.ID(agentID)})
	default:
		err = fmt.Errorf("unknown action %q", action)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}
	fmt.Println("ok")
	return 0
}

func logsCmd(addr, agentID string, tail int, follow bool) int {
	conn, err := dial(addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}
	defer conn.Close()

	resp, err := roundTrip(conn, protocol.TypeFetchAgentTimelineRequest, protocol.FetchAgentTimelineRequest{
		AgentID:    agent.ID(agentID),
		Direction:  "tail",
		Limit:      tail,
		Projection: "projected",
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}

	var body protocol.FetchAgentTimelineResponse
	if err := resp.Decode(&body); err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: decoding response: %v\n", err)
		return 1
	}
	for _, entry := range body.Entries {
		printEntry(entry)
	}

	if !follow {
		return 0
	}

	req, err := protocol.Encode(protocol.TypeSubscribeAgentStreamRequest, uuid.NewString(), protocol.SubscribeAgentStreamRequest{
		AgentID: agent.ID(agentID),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: %v\n", err)
		return 1
	}
	if err := conn.WriteJSON(req); err != nil {
		fmt.Fprintf(os.Stderr, "paseoctl: subscribing: %v\n", err)
		return 1
	}
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			fmt.Fprintf(os.Stderr, "paseoctl: stream ended: %v\n", err)
			return 1
		}
		if env.Type != protocol.TypeAgentStream {
			continue
		}
		var ev protocol.AgentStreamEvent
		if err := env.Decode(&ev); err != nil {
			continue
		}
		fmt.Printf("[%s] %s\n", ev.Event.Type, jsonify(ev.Event))
	}
}

func printEntry(entry any) {
	fmt.Println(jsonify(entry))
}

func jsonify(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%+v", v)
	}
	return string(data)
}

func dial(addr string) (*websocket.Conn, error) {
	url := "ws://" + addr + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return nil, fmt.Errorf("connecting to paseod at %s: %w", addr, err)
	}
	return conn, nil
}

func roundTrip(conn *websocket.Conn, msgType string, payload any) (*protocol.Envelope, error) {
	requestID := uuid.NewString()
	req, err := protocol.Encode(msgType, requestID, payload)
	if err != nil {
		return nil, err
	}

	conn.SetWriteDeadline(time.Now().Add(defaultTimeout))
	if err := conn.WriteJSON(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(defaultTimeout))
	for {
		var env protocol.Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return nil, fmt.Errorf("reading response: %w", err)
		}
		if env.RequestID != requestID {
			continue
		}
		if env.Type == protocol.TypeRPCError {
			var rpcErr protocol.RPCError
			if decErr := env.Decode(&rpcErr); decErr == nil {
				return nil, fmt.Errorf("%s: %s", rpcErr.Code, rpcErr.Message)
			}
			return nil, fmt.Errorf("request failed")
		}
		return &env, nil
	}
}
