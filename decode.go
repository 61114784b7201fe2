package main

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/minecraftim/go-oscar/lib/flap"
	"github.com/minecraftim/go-oscar/lib/rv"
	"github.com/minecraftim/go-oscar/lib/session"
	"github.com/minecraftim/go-oscar/lib/snac"
	"github.com/minecraftim/go-oscar/lib/snaccmd"
	"github.com/minecraftim/go-oscar/lib/snaccmd/icbm"
	"github.com/samber/oops"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))

type decodedSnac struct {
	Family     string             `yaml:"family"`
	Subtype    string             `yaml:"subtype"`
	Flags      string             `yaml:"flags"`
	ReqID      string             `yaml:"req_id"`
	Type       string             `yaml:"type,omitempty"`
	Command    any                `yaml:"command,omitempty"`
	Rendezvous *decodedRendezvous `yaml:"rendezvous,omitempty"`
	Payload    string             `yaml:"payload"`
	Error      string             `yaml:"error,omitempty"`
}

type decodedRendezvous struct {
	Capability string `yaml:"capability"`
	Status     uint16 `yaml:"status"`
	Type       string `yaml:"type"`
	Command    any    `yaml:"command,omitempty"`
	Error      string `yaml:"error,omitempty"`
}

type decodedFrame struct {
	Channel string       `yaml:"channel"`
	Seq     uint16       `yaml:"seq"`
	Length  int          `yaml:"length"`
	Type    string       `yaml:"type,omitempty"`
	Command any          `yaml:"command,omitempty"`
	Snac    *decodedSnac `yaml:"snac,omitempty"`
	Error   string       `yaml:"error,omitempty"`
}

// decodeFrames reads FLAP frames from r until it ends. A truncated last
// frame is an error after the complete frames.
func decodeFrames(r io.Reader) ([]decodedFrame, error) {
	factory := flap.DefaultFactory()
	table := session.NewTable()

	var out []decodedFrame
	for {
		pkt, err := flap.ReadPacket(r)
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, oops.Wrapf(err, "frame %d", len(out)+1)
		}

		df := decodedFrame{Channel: flap.ChannelName(pkt.Channel), Seq: pkt.Seq, Length: pkt.Data.Len()}
		if sp, ok := snac.FromFlap(pkt); ok {
			df.Snac = describeSnac(table, sp)
		} else if cmd, err := factory.Decode(pkt); err != nil {
			df.Error = err.Error()
		} else {
			df.Type = fmt.Sprintf("%T", cmd)
			df.Command = cmd
		}
		out = append(out, df)
	}
}

func describeSnac(table *snac.Table, p snac.Packet) *decodedSnac {
	ds := &decodedSnac{
		Family:  fmt.Sprintf("%s (0x%04x)", snaccmd.FamilyName(p.Family), p.Family),
		Subtype: fmt.Sprintf("0x%04x", p.Subtype),
		Flags:   fmt.Sprintf("0x%04x", p.Flags()),
		ReqID:   fmt.Sprintf("0x%08x", p.ReqID),
		Payload: hex.EncodeToString(p.Payload().Bytes()),
	}
	cmd, err := table.Decode(p)
	switch {
	case err != nil:
		ds.Error = err.Error()
	case cmd != nil:
		ds.Type = fmt.Sprintf("%T", cmd)
		ds.Command = cmd
		switch m := cmd.(type) {
		case *icbm.SendRv:
			ds.Rendezvous = describeRendezvous(m.Rv)
		case *icbm.RecvRv:
			ds.Rendezvous = describeRendezvous(m.Rv)
		}
	}
	return ds
}

func describeRendezvous(b icbm.RvBlock) *decodedRendezvous {
	dr := &decodedRendezvous{Capability: snaccmd.CapabilityName(b.Capability), Status: b.Status}
	cmd, err := rv.Decode(b)
	if err != nil {
		dr.Error = err.Error()
		return dr
	}
	dr.Type = fmt.Sprintf("%T", cmd)
	dr.Command = cmd
	return dr
}

func parseHex(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t', ':':
			return -1
		}
		return r
	}, s)
	s = strings.TrimPrefix(s, "0x")
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, oops.Wrapf(err, "parse hex")
	}
	return b, nil
}

func newDecodeCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "decode [hex]",
		Short: "Decode FLAP frames and their SNACs to YAML",
		Long:  "Decode FLAP frames given as a hex argument, or read raw bytes from --file (- for stdin).",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader
			switch {
			case file == "-":
				in = cmd.InOrStdin()
			case file != "":
				f, err := os.Open(file)
				if err != nil {
					return oops.Wrapf(err, "open %s", file)
				}
				defer f.Close()
				in = f
			case len(args) == 1:
				b, err := parseHex(args[0])
				if err != nil {
					return err
				}
				in = bytes.NewReader(b)
			default:
				return oops.Errorf("give a hex argument or --file")
			}

			frames, err := decodeFrames(in)
			w := cmd.OutOrStdout()
			for i, df := range frames {
				fmt.Fprintln(w, headingStyle.Render(fmt.Sprintf("frame %d: %s", i+1, df.Channel)))
				out, merr := yaml.Marshal(df)
				if merr != nil {
					return oops.Wrapf(merr, "encode frame %d", i+1)
				}
				w.Write(out)
			}
			return err
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "read raw frames from a file")
	return cmd
}
