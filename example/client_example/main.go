package main

import (
	"context"
	"flag"
	"time"

	"github.com/coder/websocket"
	"github.com/sirupsen/logrus"
)

func client(url, text string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ws, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return err
	}
	defer ws.Close(websocket.StatusNormalClosure, "bye")

	if err = ws.Write(ctx, websocket.MessageText, []byte(text)); err != nil {
		return err
	}
	typ, data, err := ws.Read(ctx)
	if err != nil {
		return err
	}
	logrus.Infof("[client]: type = %v, data = %s", typ, data)
	return nil
}

func main() {
	url := flag.String("url", "ws://localhost:8080/", "server url")
	text := flag.String("text", "hello, server!", "message to send")
	flag.Parse()
	if err := client(*url, *text); err != nil {
		logrus.Fatalf("[client]: %v", err)
	}
}
