package main

import (
	"bufio"
	"io"

	"github.com/go-kit/log/level"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// jsonAPI sorts map keys so decoded output is stable.
var jsonAPI = jsoniter.Config{
	EscapeHTML:             false,
	SortMapKeys:            true,
	UseNumber:              true,
	ValidateJsonRawMessage: true,
}.Froze()

type codecFlags struct {
	messageType string
	delimited   bool
}

func (f *codecFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.messageType, "type", "t", "", "fully qualified message type, e.g. app.User")
	cmd.Flags().BoolVarP(&f.delimited, "delimited", "d", false, "treat the stream as a sequence of length-prefixed messages")
	_ = cmd.MarkFlagRequired("type")
}

func newEncodeCmd(a *app) *cobra.Command {
	var f codecFlags
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Read JSON objects from stdin and write protobuf bytes to stdout",
		Long: `Read one JSON object from stdin and write its protobuf encoding. With
--delimited, read any number of JSON objects and write each with a
varint length prefix.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.encode(f)
		},
	}
	f.register(cmd)
	return cmd
}

func newDecodeCmd(a *app) *cobra.Command {
	var f codecFlags
	cmd := &cobra.Command{
		Use:   "decode",
		Short: "Read protobuf bytes from stdin and write JSON to stdout",
		Long: `Read one protobuf message from stdin and write it as a JSON object. With
--delimited, read length-prefixed messages until the input ends and write
one JSON object per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.decode(f)
		},
	}
	f.register(cmd)
	return cmd
}

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the loaded message and enum types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := bufio.NewWriter(a.out)
			for _, name := range a.proto.ListMessages() {
				if _, err := w.WriteString("message " + name + "\n"); err != nil {
					return err
				}
			}
			for _, name := range a.proto.ListEnums() {
				if _, err := w.WriteString("enum " + name + "\n"); err != nil {
					return err
				}
			}
			return w.Flush()
		},
	}
}

func (a *app) encode(f codecFlags) error {
	dec := jsonAPI.NewDecoder(a.in)
	w := bufio.NewWriter(a.out)
	count := 0
	for {
		var msg map[string]interface{}
		err := dec.Decode(&msg)
		if err == io.EOF {
			break
		}
		if err != nil {
			return errors.Wrapf(err, "read JSON object %d", count)
		}
		if err := decodeBytesFields(a.proto.GetRegistry(), f.messageType, msg); err != nil {
			return errors.Wrapf(err, "encode object %d", count)
		}

		var data []byte
		if f.delimited {
			data, err = a.proto.MarshalLengthDelimited(msg, f.messageType)
		} else {
			data, err = a.proto.Marshal(msg, f.messageType)
		}
		if err != nil {
			return errors.Wrapf(err, "encode object %d", count)
		}
		if _, err := w.Write(data); err != nil {
			return err
		}
		count++
		if !f.delimited {
			break
		}
	}
	if count == 0 {
		return errors.New("no JSON object on input")
	}
	level.Debug(a.logger).Log("msg", "encoded", "type", f.messageType, "count", count)
	return w.Flush()
}

func (a *app) decode(f codecFlags) error {
	w := bufio.NewWriter(a.out)
	enc := jsonAPI.NewEncoder(w)
	if !f.delimited {
		data, err := io.ReadAll(a.in)
		if err != nil {
			return errors.Wrap(err, "read input")
		}
		msg, err := a.proto.Parse(data, f.messageType)
		if err != nil {
			return err
		}
		if err := enc.Encode(msg); err != nil {
			return err
		}
		return w.Flush()
	}

	count := 0
	err := a.proto.ParseStream(bufio.NewReader(a.in), f.messageType, func(msg map[string]interface{}) error {
		count++
		return enc.Encode(msg)
	})
	if err != nil {
		return err
	}
	level.Debug(a.logger).Log("msg", "decoded", "type", f.messageType, "count", count)
	return w.Flush()
}
