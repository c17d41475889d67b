package adapter

import (
	"context"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/GwynCerbin/go_parcel/pkg/broker"
)

func TestRabbitConnector(t *testing.T) {
	val, ok := os.LookupEnv("CONNECTOR")
	if !ok {
		t.Skip("Skipping RabbitMQ connector test")
		return
	}
	arg := strings.Split(val, "|")
	if len(arg) != 4 {
		t.Errorf("invalid args count: %d", len(arg))
		return
	}
	con, err := Dial(&Client{
		Host:     arg[0],
		Username: arg[1],
		Password: arg[2],
	})
	if err != nil {
		t.Errorf("failed to connect to rabbit: %v", err)
		return
	}

	defer func() {
		con.Close()
	}()

	// The queue must exist up front; the adapter only checks passively.
	queueName := arg[3]
	if err = con.CheckQueue(queueName); err != nil {
		t.Errorf("queue check failed: %v", err)
		return
	}

	publisher, err := con.CreatePublisher(&PublisherConfig{
		RoutingKey:        queueName,
		MessagePersistent: true,
	})
	if err != nil {
		t.Errorf("failed to create publisher: %v", err)
		return
	}
	consumer, err := con.CreateConsumer(&ConsumerConfig{
		QueueName: queueName,
	})
	if err != nil {
		t.Errorf("failed to create consumer: %v", err)
		return
	}
	var ch = make(chan struct {
		ContentType string
		Data        []byte
	}, 1)
	go func() {
		for {
			msg, err := consumer.Consume(context.Background())
			if err != nil {
				log.Print(err)
				return
			}
			if err = msg.Ack(); err != nil {
				log.Print(err)
			}
			ch <- struct {
				ContentType string
				Data        []byte
			}{ContentType: msg.ContentType(), Data: msg.Body()}
		}
	}()

	type args struct {
		msg         string
		contentType string
	}
	var tests = []struct {
		name        string
		args        args
		want        string
		wantContent string
	}{
		{
			name: "explicit content type",
			args: args{
				msg:         `{"id":"1","payload":{"text":"hi"}}`,
				contentType: "application/json",
			},
			want:        `{"id":"1","payload":{"text":"hi"}}`,
			wantContent: "application/json",
		},
		{
			name: "detected content type",
			args: args{
				msg: "plain frame",
			},
			want:        "plain frame",
			wantContent: "text/plain; charset=utf-8",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err = publisher.Publish(context.Background(), broker.Publishing{
				ContentType: tt.args.contentType,
				Body:        []byte(tt.args.msg),
			})
			if err != nil {
				t.Errorf("failed to publish: %v", err)
				return
			}
			data := <-ch
			if string(data.Data) != tt.want {
				t.Errorf("got %s, want %s", string(data.Data), tt.want)
				return
			}
			if data.ContentType != tt.wantContent {
				t.Errorf("got content type %s, want %s", data.ContentType, tt.wantContent)
			}

			count, err := con.MessageCount(queueName)
			if err != nil {
				t.Errorf("message count: %v", err)
				return
			}

			log.Printf("queue depth after ack: %d", count)
		})
	}

}
