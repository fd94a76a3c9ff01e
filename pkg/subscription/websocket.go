package subscription

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// WebSocketClient is a JSON-RPC accountSubscribe client for a Solana pubsub endpoint
type WebSocketClient struct {
	url            string
	commitment     string
	conn           *websocket.Conn
	mu             sync.RWMutex
	writeMu        sync.Mutex
	subscriptions  map[uint64]*Subscription
	nextID         uint64
	handlers       map[uint64]AccountUpdateHandler
	reconnectDelay time.Duration
	ctx            context.Context
	cancel         context.CancelFunc
	connected      bool
}

// Subscription represents an account subscription
type Subscription struct {
	ID        uint64
	AccountID string
	SubID     uint64 // Solana subscription ID
}

// AccountUpdateHandler receives the decoded account data of a notification
type AccountUpdateHandler func(accountID string, data []byte, slot uint64)

// RPCRequest represents a JSON-RPC request
type RPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

// RPCResponse represents a JSON-RPC response
type RPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// RPCError represents a JSON-RPC error
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// NotificationMessage represents a subscription notification
type NotificationMessage struct {
	JSONRPC string             `json:"jsonrpc"`
	Method  string             `json:"method"`
	Params  NotificationParams `json:"params"`
}

// NotificationParams contains subscription notification data
type NotificationParams struct {
	Result       AccountNotification `json:"result"`
	Subscription uint64              `json:"subscription"`
}

// AccountNotification contains account update data
type AccountNotification struct {
	Context Context      `json:"context"`
	Value   AccountValue `json:"value"`
}

// Context contains slot information
type Context struct {
	Slot uint64 `json:"slot"`
}

// AccountValue contains account data
type AccountValue struct {
	Data       []string `json:"data"` // [base64_data, encoding]
	Executable bool     `json:"executable"`
	Lamports   uint64   `json:"lamports"`
	Owner      string   `json:"owner"`
	RentEpoch  uint64   `json:"rentEpoch"`
}

func newWebSocketClient(ctx context.Context, wsURL, commitment string) *WebSocketClient {
	clientCtx, cancel := context.WithCancel(ctx)
	if commitment == "" {
		commitment = "confirmed"
	}
	return &WebSocketClient{
		url:            wsURL,
		commitment:     commitment,
		subscriptions:  make(map[uint64]*Subscription),
		handlers:       make(map[uint64]AccountUpdateHandler),
		reconnectDelay: 5 * time.Second,
		ctx:            clientCtx,
		cancel:         cancel,
		nextID:         1,
	}
}

// NewWebSocketClient dials wsURL and starts the read and reconnect loops
func NewWebSocketClient(ctx context.Context, wsURL, commitment string) (*WebSocketClient, error) {
	client := newWebSocketClient(ctx, wsURL, commitment)

	if err := client.connect(); err != nil {
		client.cancel()
		return nil, err
	}

	go client.readMessages()
	go client.handleReconnection()

	return client, nil
}

func (c *WebSocketClient) connect() error {
	conn, _, err := websocket.DefaultDialer.DialContext(c.ctx, c.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	log.Infof("WebSocket connected to %s", c.url)
	return nil
}

func (c *WebSocketClient) subscribeRequest(id uint64, accountID string) RPCRequest {
	return RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountSubscribe",
		Params: []interface{}{
			accountID,
			map[string]interface{}{
				"encoding":   "base64",
				"commitment": c.commitment,
			},
		},
	}
}

// SubscribeAccount subscribes to account updates. The returned ID is local; the server's
// subscription ID is filled in when the response arrives.
func (c *WebSocketClient) SubscribeAccount(accountID string, handler AccountUpdateHandler) (uint64, error) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = handler
	c.subscriptions[id] = &Subscription{
		ID:        id,
		AccountID: accountID,
	}
	c.mu.Unlock()

	if err := c.sendRequest(c.subscribeRequest(id, accountID)); err != nil {
		c.mu.Lock()
		delete(c.handlers, id)
		delete(c.subscriptions, id)
		c.mu.Unlock()
		return 0, err
	}

	return id, nil
}

// Unsubscribe removes an account subscription
func (c *WebSocketClient) Unsubscribe(id uint64) error {
	c.mu.Lock()
	sub, exists := c.subscriptions[id]
	if !exists {
		c.mu.Unlock()
		return fmt.Errorf("subscription not found: %d", id)
	}
	delete(c.subscriptions, id)
	delete(c.handlers, id)
	solanaSubID := sub.SubID
	c.mu.Unlock()

	if solanaSubID == 0 {
		// never confirmed by the server
		return nil
	}

	return c.sendRequest(RPCRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "accountUnsubscribe",
		Params:  []interface{}{solanaSubID},
	})
}

func (c *WebSocketClient) sendRequest(req RPCRequest) error {
	c.mu.RLock()
	conn := c.conn
	c.mu.RUnlock()

	if conn == nil {
		return fmt.Errorf("not connected")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return err
	}

	// gorilla connections allow one concurrent writer
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (c *WebSocketClient) readMessages() {
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
		}

		c.mu.RLock()
		conn := c.conn
		c.mu.RUnlock()

		if conn == nil {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		_, message, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Warnf("WebSocket read error: %v", err)
			c.mu.Lock()
			if c.conn == conn {
				c.conn.Close()
				c.conn = nil
				c.connected = false
			}
			c.mu.Unlock()
			continue
		}

		c.handleMessage(message)
	}
}

func (c *WebSocketClient) handleMessage(data []byte) {
	var notification NotificationMessage
	if err := json.Unmarshal(data, &notification); err == nil && notification.Method == "accountNotification" {
		c.handleAccountNotification(notification)
		return
	}

	var response RPCResponse
	if err := json.Unmarshal(data, &response); err != nil {
		log.Warnf("Failed to parse WebSocket message: %v", err)
		return
	}

	c.handleResponse(response)
}

func (c *WebSocketClient) handleResponse(response RPCResponse) {
	if response.Error != nil {
		log.Warnf("RPC error for request %d: %s", response.ID, response.Error.Message)
		return
	}

	// accountUnsubscribe answers with a bool
	var subID uint64
	if err := json.Unmarshal(response.Result, &subID); err != nil {
		return
	}

	c.mu.Lock()
	if sub, exists := c.subscriptions[response.ID]; exists {
		sub.SubID = subID
	}
	c.mu.Unlock()
}

func (c *WebSocketClient) handleAccountNotification(notification NotificationMessage) {
	c.mu.RLock()
	var handler AccountUpdateHandler
	var accountID string
	for _, sub := range c.subscriptions {
		if sub.SubID == notification.Params.Subscription {
			handler = c.handlers[sub.ID]
			accountID = sub.AccountID
			break
		}
	}
	c.mu.RUnlock()

	if handler == nil {
		return
	}

	value := notification.Params.Result.Value
	if len(value.Data) < 1 {
		return
	}
	if len(value.Data) > 1 && value.Data[1] != "base64" {
		log.Warnf("Unexpected encoding %q for account %s", value.Data[1], accountID)
		return
	}

	data, err := base64.StdEncoding.DecodeString(value.Data[0])
	if err != nil {
		log.Warnf("Failed to decode account data for %s: %v", accountID, err)
		return
	}

	handler(accountID, data, notification.Params.Result.Context.Slot)
}

func (c *WebSocketClient) handleReconnection() {
	ticker := time.NewTicker(c.reconnectDelay)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			if c.IsConnected() {
				continue
			}
			log.Info("Attempting to reconnect WebSocket...")
			if err := c.reconnect(); err != nil {
				log.Warnf("Reconnection failed: %v", err)
			} else {
				log.Info("WebSocket reconnected successfully")
			}
		}
	}
}

// reconnect dials again and resubscribes every tracked account
func (c *WebSocketClient) reconnect() error {
	if err := c.connect(); err != nil {
		return err
	}

	c.mu.Lock()
	subs := make([]*Subscription, 0, len(c.subscriptions))
	for _, sub := range c.subscriptions {
		sub.SubID = 0
		subs = append(subs, sub)
	}
	c.mu.Unlock()

	for _, sub := range subs {
		if err := c.sendRequest(c.subscribeRequest(sub.ID, sub.AccountID)); err != nil {
			log.Warnf("Failed to resubscribe to %s: %v", sub.AccountID, err)
		}
	}

	return nil
}

// Close closes the WebSocket connection
func (c *WebSocketClient) Close() error {
	c.cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	c.connected = false
	if c.conn != nil {
		err := c.conn.Close()
		c.conn = nil
		return err
	}
	return nil
}

// IsConnected returns whether the client is connected
func (c *WebSocketClient) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected
}
