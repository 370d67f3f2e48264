// Command webmux-cli is an interactive terminal client for a webmux server.
// It bridges stdin/stdout to a connection's WebSocket endpoint: device output
// prints to stdout, and each typed line is sent to the device with a CRLF.
package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/gorilla/websocket"
	"github.com/urfave/cli"
)

func main() {
	app := cli.NewApp()
	app.Name = "webmux-cli"
	app.Usage = "connect to a serial device through a webmux server"
	app.Flags = []cli.Flag{
		cli.StringFlag{
			Name:  "host, H",
			Value: "127.0.0.1",
			Usage: "webmux server host",
		},
		cli.IntFlag{
			Name:  "port, p",
			Value: 8080,
			Usage: "webmux server port",
		},
		cli.StringFlag{
			Name:     "device, d",
			Usage:    "serial connection name",
			Required: true,
		},
		cli.BoolFlag{
			Name:  "tls, s",
			Usage: "connect over wss instead of ws",
		},
	}
	app.Action = run

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("webmux-cli: %v", err)
	}
}

func run(c *cli.Context) error {
	url := wsURL(c.String("host"), c.Int("port"), c.String("device"), c.Bool("tls"))

	fmt.Printf("Connecting to webmux server: %s\n", url)

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to webmux server: %w", err)
	}
	defer conn.Close()

	fmt.Println("Connected. Type a line and press enter to send; Ctrl+D to exit.")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if msgType == websocket.BinaryMessage || msgType == websocket.TextMessage {
				os.Stdout.Write(data)
			}
		}
	}()

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		select {
		case <-done:
			fmt.Println("Connection closed by server")
			return nil
		default:
		}
		frame := scanner.Text() + "\r\n"
		if err := conn.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			return fmt.Errorf("failed to send data: %w", err)
		}
	}

	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	select {
	case <-done:
	case <-time.After(time.Second):
	}

	return scanner.Err()
}

func wsURL(host string, port int, device string, tls bool) string {
	scheme := "ws"
	if tls {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s:%d/api/connections/%s/ws", scheme, host, port, device)
}
