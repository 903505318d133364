// Package httpipc implementa el canal de request/response estructurado sobre
// HTTP local: cada app broker expone un endpoint y las operaciones viajan
// como JSON.
package httpipc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dropDatabas3/brokerdisco/internal/broker"
)

// OperationsPath es el prefijo de rutas que atiende el lado broker.
const OperationsPath = "/v1/broker/operations/"

// DefaultTimeout por request.
const DefaultTimeout = 10 * time.Second

// maxBody limita lo que se lee de una respuesta.
const maxBody = 1 << 20

// Request es el cuerpo que se envía.
type Request struct {
	Target  string            `json:"target"`
	Payload map[string]string `json:"payload,omitempty"`
}

// Client habla con los endpoints configurados por application id.
type Client struct {
	endpoints map[string]string
	kind      broker.TransportKind
	http      *http.Client
}

// Option configura un Client.
type Option func(*Client)

// WithHTTPClient reemplaza el *http.Client.
func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.http = hc } }

// WithKind cambia el TransportKind reportado (por defecto KindHTTP).
func WithKind(k broker.TransportKind) Option { return func(c *Client) { c.kind = k } }

// New crea un Client. endpoints mapea application id -> base URL.
func New(endpoints map[string]string, opts ...Option) *Client {
	c := &Client{
		endpoints: make(map[string]string, len(endpoints)),
		kind:      broker.KindHTTP,
		http:      &http.Client{Timeout: DefaultTimeout},
	}
	for app, ep := range endpoints {
		c.endpoints[broker.NormalizeAppID(app)] = strings.TrimRight(strings.TrimSpace(ep), "/")
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *Client) Kind() broker.TransportKind { return c.kind }

// Supports es true si hay endpoint para target. No hace I/O.
func (c *Client) Supports(_ context.Context, target string) bool {
	_, ok := c.endpoints[broker.NormalizeAppID(target)]
	return ok
}

func (c *Client) Send(ctx context.Context, op broker.Operation) (broker.Payload, error) {
	base, ok := c.endpoints[broker.NormalizeAppID(op.Target)]
	if !ok {
		return nil, c.fail(broker.KindUnsupportedErr, op.Target, "no endpoint configured", nil)
	}

	body, err := json.Marshal(Request{Target: op.Target, Payload: op.Payload})
	if err != nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "encode request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+OperationsPath+string(op.Kind), bytes.NewReader(body))
	if err != nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusNotImplemented:
		return nil, c.fail(broker.KindUnsupportedErr, op.Target, fmt.Sprintf("operation %s not implemented (status %d)", op.Kind, resp.StatusCode), nil)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		// un error tipado en el cuerpo tiene prioridad sobre el status
		var p broker.Payload
		if json.Unmarshal(raw, &p) == nil {
			if perr := broker.ErrorFromPayload(p, c.kind, op.Target); perr != nil {
				return nil, perr
			}
		}
		return nil, c.fail(broker.KindConnectionErr, op.Target, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	var p broker.Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "decode response", err)
	}
	if p == nil {
		return nil, c.fail(broker.KindConnectionErr, op.Target, "empty response", nil)
	}
	return p, nil
}

func (c *Client) fail(kind broker.ErrorKind, target, msg string, err error) error {
	return broker.NewError(kind, c.kind, target, msg, err)
}
