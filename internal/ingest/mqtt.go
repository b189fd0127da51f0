package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"brewble/internal/config"
	"brewble/internal/model"
)

// StartMQTT subscribes to advertisements relayed by remote gateways. The
// subscription is renewed on every reconnect.
func StartMQTT(ctx context.Context, cfg *config.Manager, out chan<- model.Advertisement, logger *slog.Logger) error {
	current := cfg.Get().Ingest.MQTT
	if !current.Enabled {
		if logger != nil {
			logger.Info("mqtt ingest disabled")
		}
		return nil
	}
	clientID := mqttClientID(current.ClientID)
	parser := NewParser()
	handler := func(_ mqtt.Client, msg mqtt.Message) {
		emitLine(ctx, parser, string(msg.Payload()), "mqtt", out, logger)
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(current.Broker)
	opts.SetClientID(clientID)
	if current.Username != "" {
		opts.SetUsername(current.Username)
		opts.SetPassword(current.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(5 * time.Second)
	opts.SetMaxReconnectInterval(60 * time.Second)
	opts.SetKeepAlive(30 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(c mqtt.Client) {
		token := c.Subscribe(current.Topic, current.QoS, handler)
		token.Wait()
		if err := token.Error(); err != nil {
			if logger != nil {
				logger.Error("mqtt subscribe failed", "topic", current.Topic, "err", err)
			}
			return
		}
		if logger != nil {
			logger.Info("mqtt ingest subscribed", "broker", current.Broker, "topic", current.Topic, "client_id", clientID)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		if logger != nil {
			logger.Warn("mqtt connection lost", "err", err)
		}
	})

	client := mqtt.NewClient(opts)
	token := client.Connect()
	const poll = 200 * time.Millisecond
	for !token.WaitTimeout(poll) {
		select {
		case <-ctx.Done():
			client.Disconnect(250)
			return ctx.Err()
		default:
		}
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt connect: %w", err)
	}
	go func() {
		<-ctx.Done()
		client.Disconnect(250)
	}()
	return nil
}

// mqttClientID keeps a configured id and otherwise generates a unique one so
// several gateways can share a broker.
func mqttClientID(configured string) string {
	if configured != "" {
		return configured
	}
	return "brewble-" + uuid.NewString()[:8]
}
