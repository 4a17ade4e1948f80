package tcp

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/zylisp/calc/operations"
	"github.com/zylisp/calc/protocol"
)

func startServer(t *testing.T, codec string) (*Server, context.CancelFunc) {
	t.Helper()
	server := NewServer("127.0.0.1:0", codec, operations.NewHandler(nil))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		server.Start(ctx)
	}()

	select {
	case <-server.Ready():
	case <-time.After(2 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Second)
		defer stopCancel()
		server.Stop(stopCtx)
	})
	return server, cancel
}

func TestTCPServerClient(t *testing.T) {
	for _, codec := range []string{"json", "msgpack"} {
		t.Run(codec, func(t *testing.T) {
			server, _ := startServer(t, codec)

			client := NewClient(codec)
			if err := client.Connect(context.Background(), server.Addr()); err != nil {
				t.Fatalf("Failed to connect client: %v", err)
			}
			defer client.Close()

			t.Run("basic eval", func(t *testing.T) {
				result, err := client.Eval(context.Background(), "(1+2)*3")
				if err != nil {
					t.Fatalf("Eval failed: %v", err)
				}
				if result.Value != float64(9) {
					t.Errorf("Expected value 9, got %v", result.Value)
				}
				if result.Result != "9" {
					t.Errorf("Expected result text 9, got %q", result.Result)
				}
				if !result.HasStatus(protocol.StatusDone) {
					t.Errorf("Expected status 'done', got %v", result.Status)
				}
			})

			t.Run("eval error", func(t *testing.T) {
				result, err := client.Eval(context.Background(), "1/0")
				if err != nil {
					t.Fatalf("Eval failed: %v", err)
				}
				if !result.HasStatus(protocol.StatusEvalError) {
					t.Errorf("Expected eval-error status, got %v", result.Status)
				}
				if result.ErrorKind != "division by zero" {
					t.Errorf("Expected division by zero, got %q", result.ErrorKind)
				}
			})

			t.Run("session edits", func(t *testing.T) {
				ctx := context.Background()
				client.SetSession("tcp-" + codec)
				defer client.SetSession("")

				resp, err := client.Send(ctx, &protocol.Message{Op: protocol.OpInsert, Code: "50%"})
				if err != nil {
					t.Fatalf("insert failed: %v", err)
				}
				if resp.Preview != "0.5" || !resp.HasPreview {
					t.Errorf("expected preview 0.5, got %q (%v)", resp.Preview, resp.HasPreview)
				}

				resp, err = client.Send(ctx, &protocol.Message{Op: protocol.OpCommit})
				if err != nil {
					t.Fatalf("commit failed: %v", err)
				}
				if resp.Text != "0.5" {
					t.Errorf("expected buffer 0.5, got %q", resp.Text)
				}

				resp, err = client.Send(ctx, &protocol.Message{Op: protocol.OpHistory})
				if err != nil {
					t.Fatalf("history failed: %v", err)
				}
				if len(resp.Entries) != 1 || resp.Entries[0].Expression != "50%" {
					t.Errorf("unexpected history %+v", resp.Entries)
				}
			})

			t.Run("unknown op", func(t *testing.T) {
				resp, err := client.Send(context.Background(), &protocol.Message{Op: "bogus"})
				if err != nil {
					t.Fatalf("send failed: %v", err)
				}
				if resp.ProtocolError == "" {
					t.Error("expected a protocol error for an unknown op")
				}
			})
		})
	}
}

func TestTCPMultipleClients(t *testing.T) {
	server, _ := startServer(t, "json")
	addr := server.Addr()

	numClients := 5
	results := make(chan error, numClients)

	for i := 0; i < numClients; i++ {
		go func(clientNum int) {
			client := NewClient("json")
			if err := client.Connect(context.Background(), addr); err != nil {
				results <- fmt.Errorf("client %d connect failed: %w", clientNum, err)
				return
			}
			defer client.Close()

			expr := fmt.Sprintf("%d*2", clientNum)
			result, err := client.Eval(context.Background(), expr)
			if err != nil {
				results <- fmt.Errorf("client %d eval failed: %w", clientNum, err)
				return
			}
			if result.Value != float64(clientNum*2) {
				results <- fmt.Errorf("client %d: expected %d, got %v", clientNum, clientNum*2, result.Value)
				return
			}
			results <- nil
		}(i)
	}

	for i := 0; i < numClients; i++ {
		select {
		case err := <-results:
			if err != nil {
				t.Error(err)
			}
		case <-time.After(5 * time.Second):
			t.Fatal("Timeout waiting for client results")
		}
	}
}

func TestTCPServerShutdown(t *testing.T) {
	server := NewServer("127.0.0.1:0", "json", nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		server.Start(ctx)
	}()
	<-server.Ready()

	client := NewClient("json")
	if err := client.Connect(context.Background(), server.Addr()); err != nil {
		t.Fatalf("Failed to connect client: %v", err)
	}
	defer client.Close()

	if _, err := client.Eval(context.Background(), "1"); err != nil {
		t.Fatalf("Eval failed: %v", err)
	}

	cancel()
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	if err := server.Stop(stopCtx); err != nil {
		t.Errorf("Server stop failed: %v", err)
	}

	if _, err := client.Eval(context.Background(), "1"); err == nil {
		t.Error("expected an error after server shutdown")
	}
}

func TestTCPUnsupportedCodec(t *testing.T) {
	server := NewServer("127.0.0.1:0", "xml", nil)
	if err := server.Start(context.Background()); err == nil {
		t.Fatal("expected error for unsupported codec")
	}
}

func TestClientNotConnected(t *testing.T) {
	client := NewClient("json")
	if _, err := client.Eval(context.Background(), "1"); err == nil {
		t.Fatal("expected error from unconnected client")
	}
}
