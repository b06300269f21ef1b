package ws

import (
	"context"
	"errors"
	"sync"

	"palabre/internal/models"
)

type wsConnection interface {
	Close() error
	WriteJSON(v interface{}) error
	ReadMessage() (messageType int, p []byte, err error)
}

type eventDispatcher interface {
	HandleConnect(connID string)
	HandleMessage(connID string, raw []byte)
	HandleDisconnect(connID string)
}

type connectionHub interface {
	Register(connID string) chan models.ServerEvent
	Unregister(connID string)
}

// Connection drives one client socket: a read pump feeding raw envelopes to
// the dispatcher and a main loop draining the connection's outbound queue.
// The main loop is the only writer on the transport.
type Connection struct {
	ws         wsConnection
	dispatcher eventDispatcher
	hub        connectionHub
	id         string
	fromClient chan []byte
	fromServer chan models.ServerEvent
	errorCh    chan error
}

func NewConnection(dispatcher eventDispatcher, hub connectionHub, ws wsConnection, id string) *Connection {
	return &Connection{
		ws:         ws,
		dispatcher: dispatcher,
		hub:        hub,
		id:         id,
		fromClient: make(chan []byte),
		fromServer: hub.Register(id),
		errorCh:    make(chan error, 2),
	}
}

func (c *Connection) Handle(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer func() {
		close(c.fromClient)
		close(c.errorCh)
		c.hub.Unregister(c.id)
		c.dispatcher.HandleDisconnect(c.id)
	}()

	c.dispatcher.HandleConnect(c.id)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		c.errorCh <- c.pumpMessages(ctx)
		cancel()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.errorCh <- c.mainLoop(ctx)
		cancel()
	}()

	var err error
	select {
	case err = <-c.errorCh:
	case <-ctx.Done():
		// A pump failure cancels the context too; prefer its error over a
		// bare cancellation.
		select {
		case err = <-c.errorCh:
		default:
		}
	}
	c.ws.Close()
	wg.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

func (c *Connection) pumpMessages(ctx context.Context) error {
	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			return err
		}
		select {
		case c.fromClient <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (c *Connection) mainLoop(ctx context.Context) error {
	for {
		select {
		case raw := <-c.fromClient:
			c.dispatcher.HandleMessage(c.id, raw)
		case ev, ok := <-c.fromServer:
			if !ok {
				return nil
			}
			if err := c.ws.WriteJSON(ev); err != nil {
				return err
			}
		case <-ctx.Done():
			return nil
		}
	}
}
