// Package mqttclient connects to an MQTT broker, subscribes to one topic
// filter and hands every delivery to a callback.
//
// Broker URL:
//   host:port is dialled as tcp://host:port unless the host already carries
//   a scheme (tcp://, ssl://, ws://, wss://), which is passed through.
//
// Features:
//   - Subscription is (re)issued from the on-connect handler, so it survives
//     auto-reconnect
//   - The first subscription result is returned from Connect; a failed
//     re-subscription after a reconnect is reported through OnFatal
//   - Connection loss is reported as a status change, not an error
//   - Publish is asynchronous and reports completion through a callback
package mqttclient

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// DefaultTimeout bounds connect, subscribe and publish round trips.
const DefaultTimeout = 10 * time.Second

var errNotConnected = errors.New("mqtt client not connected")

// Options configures the broker connection.
type Options struct {
	Host     string
	Port     int
	Username string
	Password string
	ClientID string
	Topic    string
	QoS      byte
	Timeout  time.Duration
}

// Handlers receives transport events. OnMessage runs on the paho callback
// goroutine and must not block.
type Handlers struct {
	OnMessage func(label string, payload []byte, retained bool)
	OnStatus  func(status string, online bool)
	OnFatal   func(err error)
}

// Client wraps a paho client with subscribe-on-connect semantics.
type Client struct {
	opts     Options
	handlers Handlers
	client   mqtt.Client

	// subscribed flips once the first subscription succeeds; firstSub
	// carries that first result to Connect.
	mu         sync.Mutex
	subscribed bool
	firstSub   chan error
	stopOnce   sync.Once
}

// NewClient creates a client; nothing is dialled until Connect.
func NewClient(opts Options, handlers Handlers) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.ClientID == "" {
		opts.ClientID = fmt.Sprintf("mqttwatch-%d", time.Now().UnixNano())
	}
	return &Client{
		opts:     opts,
		handlers: handlers,
		firstSub: make(chan error, 1),
	}
}

// BrokerURL returns the URL the client dials.
func (o Options) BrokerURL() string {
	if strings.Contains(o.Host, "://") {
		return o.Host
	}
	return fmt.Sprintf("tcp://%s:%d", o.Host, o.Port)
}

// Connect dials the broker and waits for the first subscription to be
// acknowledged. Both steps are bounded by the configured timeout and ctx.
func (c *Client) Connect(ctx context.Context) error {
	opts := mqtt.NewClientOptions()
	brokerURL := c.opts.BrokerURL()
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.opts.ClientID)
	if c.opts.Username != "" {
		opts.SetUsername(c.opts.Username)
		opts.SetPassword(c.opts.Password)
	}
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectTimeout(c.opts.Timeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetCleanSession(true)
	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetReconnectingHandler(c.onReconnecting)

	c.client = mqtt.NewClient(opts)
	log.Printf("MQTT: Connecting to %s as %s...", brokerURL, c.opts.ClientID)

	if err := wait(ctx, c.client.Connect(), c.opts.Timeout); err != nil {
		return fmt.Errorf("connect to %s: %w", brokerURL, err)
	}

	select {
	case err := <-c.firstSub:
		if err != nil {
			c.client.Disconnect(250)
			return err
		}
	case <-time.After(c.opts.Timeout):
		c.client.Disconnect(250)
		return fmt.Errorf("subscribe to %s: timed out after %s", c.opts.Topic, c.opts.Timeout)
	case <-ctx.Done():
		c.client.Disconnect(250)
		return ctx.Err()
	}
	return nil
}

// wait blocks until token completes, the timeout passes or ctx ends.
func wait(ctx context.Context, token mqtt.Token, timeout time.Duration) error {
	select {
	case <-token.Done():
		return token.Error()
	case <-time.After(timeout):
		return fmt.Errorf("timed out after %s", timeout)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// onConnect runs on every successful (re)connect.
func (c *Client) onConnect(client mqtt.Client) {
	log.Printf("MQTT: Connected, subscribing to topic: %s", c.opts.Topic)
	c.status("connected", true)

	token := client.Subscribe(c.opts.Topic, c.opts.QoS, c.messageHandler)
	var err error
	if !token.WaitTimeout(c.opts.Timeout) {
		err = fmt.Errorf("subscribe to %s: timed out after %s", c.opts.Topic, c.opts.Timeout)
	} else if token.Error() != nil {
		err = fmt.Errorf("subscribe to %s: %w", c.opts.Topic, token.Error())
	}

	c.mu.Lock()
	first := !c.subscribed
	if err == nil {
		c.subscribed = true
	}
	c.mu.Unlock()

	if first {
		select {
		case c.firstSub <- err:
		default:
		}
		if err == nil {
			log.Println("MQTT: Successfully subscribed, receiving messages...")
		}
		return
	}
	if err != nil {
		log.Printf("MQTT: Re-subscribe failed: %v", err)
		if c.handlers.OnFatal != nil {
			c.handlers.OnFatal(err)
		}
		return
	}
	log.Println("MQTT: Re-subscribed after reconnect")
}

func (c *Client) onConnectionLost(_ mqtt.Client, err error) {
	log.Printf("MQTT: Connection lost: %v", err)
	log.Println("MQTT: Will attempt to reconnect...")
	c.status("offline", false)
}

func (c *Client) onReconnecting(_ mqtt.Client, _ *mqtt.ClientOptions) {
	c.status("reconnecting", false)
}

func (c *Client) status(s string, online bool) {
	if c.handlers.OnStatus != nil {
		c.handlers.OnStatus(s, online)
	}
}

// messageHandler forwards a delivery. Paho reuses nothing from msg after the
// handler returns, but the payload is copied so the queue owns its bytes.
func (c *Client) messageHandler(_ mqtt.Client, msg mqtt.Message) {
	if c.handlers.OnMessage == nil {
		return
	}
	payload := append([]byte(nil), msg.Payload()...)
	c.handlers.OnMessage(msg.Topic(), payload, msg.Retained())
}

// Publish sends payload to label without blocking. done, if non-nil, is
// called from another goroutine once the broker acknowledged, the publish
// failed or the timeout passed.
func (c *Client) Publish(label string, payload []byte, retained bool, done func(error)) {
	if c.client == nil {
		if done != nil {
			go done(errNotConnected)
		}
		return
	}
	token := c.client.Publish(label, c.opts.QoS, retained, payload)
	go func() {
		err := wait(context.Background(), token, c.opts.Timeout)
		if err != nil {
			err = fmt.Errorf("publish to %s: %w", label, err)
		}
		if done != nil {
			done(err)
		}
	}()
}

// IsConnected returns whether the client is connected.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

// Stop unsubscribes and disconnects. It is safe to call more than once.
func (c *Client) Stop() {
	c.stopOnce.Do(func() {
		log.Println("Stopping MQTT client...")
		if c.client != nil && c.client.IsConnected() {
			c.client.Unsubscribe(c.opts.Topic).WaitTimeout(250 * time.Millisecond)
			c.client.Disconnect(250)
		}
		log.Println("MQTT client stopped")
	})
}
