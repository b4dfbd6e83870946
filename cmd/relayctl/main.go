// Command relayctl inspects encoded index messages and publishes sample
// batches to an index node.
//
//	relayctl inspect message.bin
//	relayctl send -topic index-operations
//	relayctl send -rpc localhost:7400
package main

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/codec"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/protocol"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/internal/remote"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/indexrelay/pkg/rpc"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	var err error
	switch os.Args[1] {
	case "inspect":
		err = inspect(os.Args[2:], os.Stdout)
	case "send":
		err = send(os.Args[2:])
	default:
		usage()
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "relayctl %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: relayctl inspect <file> | relayctl send [-config path] [-topic name | -rpc addr] [-out file]")
	os.Exit(2)
}

type fieldView struct {
	Kind  string         `json:"kind"`
	Name  string         `json:"name,omitempty"`
	Value protocol.Field `json:"value"`
}

type operationView struct {
	Kind      string            `json:"kind"`
	Entity    string            `json:"entity,omitempty"`
	ID        string            `json:"id,omitempty"`
	Boost     float32           `json:"boost,omitempty"`
	Fields    []fieldView       `json:"fields,omitempty"`
	Analyzers map[string]string `json:"analyzers,omitempty"`
}

type messageView struct {
	Version    string          `json:"version"`
	Operations []operationView `json:"operations"`
}

func viewOf(msg *protocol.Message) messageView {
	out := messageView{Version: msg.Version.String()}
	for _, op := range msg.Operations {
		v := operationView{Kind: op.Kind().String(), Entity: protocol.EntityOf(op)}
		var doc *protocol.Document
		switch o := op.(type) {
		case protocol.Delete:
			v.ID = hex.EncodeToString(o.ID)
		case protocol.Add:
			v.ID, doc, v.Analyzers = hex.EncodeToString(o.ID), &o.Document, o.FieldToAnalyzer
		case protocol.Update:
			v.ID, doc, v.Analyzers = hex.EncodeToString(o.ID), &o.Document, o.FieldToAnalyzer
		}
		if doc != nil {
			v.Boost = doc.Boost
			for _, f := range doc.Fields {
				v.Fields = append(v.Fields, fieldView{Kind: f.FieldKind().String(), Name: f.FieldName(), Value: f})
			}
		}
		out.Operations = append(out.Operations, v)
	}
	return out
}

func inspect(args []string, w io.Writer) error {
	if len(args) != 1 {
		return fmt.Errorf("expected one message file")
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	msg, err := codec.NewDeserializer().Decode(data)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(viewOf(msg))
}

// sampleBatch adds two books and deletes a third.
func sampleBatch() []protocol.Operation {
	book := func(title string, year int32) protocol.Document {
		return codec.NewDocumentBuilder(1).
			Add(protocol.StringField{
				FieldOptions: protocol.FieldOptions{Name: "title", Boost: 1},
				Value:        title,
				Store:        protocol.StoreYes,
				Index:        protocol.IndexAnalyzed,
			}).
			Add(protocol.NumericIntField{
				NumericOptions: protocol.NumericOptions{
					FieldOptions:  protocol.FieldOptions{Name: "year", Boost: 1},
					PrecisionStep: 4,
					Store:         protocol.StoreYes,
					Indexed:       true,
				},
				Value: year,
			}).
			Finish()
	}
	return []protocol.Operation{
		protocol.NewAdd("Book", []byte("dune"), book("Dune", 1965), map[string]string{"title": "standard"}),
		protocol.NewAdd("Book", []byte("hyperion"), book("Hyperion", 1989), nil),
		protocol.NewDelete("Book", []byte("neuromancer")),
	}
}

func send(args []string) error {
	fs := flag.NewFlagSet("send", flag.ExitOnError)
	configPath := fs.String("config", "", "path to config file")
	topic := fs.String("topic", "", "Kafka topic to publish to")
	rpcAddr := fs.String("rpc", "", "index node RPC address")
	out := fs.String("out", "", "write the encoded message to this file instead of sending it")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	logger.Setup(cfg.Logging.Level, "text")
	ops := sampleBatch()

	if *out != "" {
		payload, err := codec.Encode(ops)
		if err != nil {
			return err
		}
		return os.WriteFile(*out, payload, 0o644)
	}

	var sender remote.Sender
	switch {
	case *rpcAddr != "":
		client, err := rpc.Dial(*rpcAddr, cfg.RPC.Timeout, cfg.RPC.MaxFrameSize)
		if err != nil {
			return err
		}
		sender = remote.NewRPCSender(client, cfg.Kafka.MaxRetries, cfg.Kafka.RetryBackoff, nil)
	case *topic != "":
		sender = remote.NewKafkaSender(kafka.NewProducer(cfg.Kafka, *topic), cfg.Kafka, nil)
	default:
		return fmt.Errorf("one of -topic, -rpc or -out is required")
	}
	defer sender.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := remote.NewPublisher(sender).Publish(ctx, ops); err != nil {
		return err
	}
	fmt.Printf("published %d operations\n", len(ops))
	return nil
}
