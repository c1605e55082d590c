// Package tracelog reads communication logs: a YAML list of records, each
// with a direction flag and the transferred bytes as hex text.
package tracelog

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"lmsdisasm/internal/commlink"
	"lmsdisasm/internal/common"
)

type entry struct {
	Sent    *bool  `yaml:"sent"`
	HexData string `yaml:"hexdata"`
}

// Read decodes every record in r, in order.
func Read(r io.Reader) ([]commlink.Record, error) {
	var entries []entry
	if err := yaml.NewDecoder(r).Decode(&entries); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, common.FormatError(0, "communication log: %v", err)
	}

	records := make([]commlink.Record, 0, len(entries))
	for i, e := range entries {
		if e.Sent == nil {
			return nil, common.FormatError(i, "record %d: missing sent flag", i)
		}
		data, err := hex.DecodeString(strings.Join(strings.Fields(e.HexData), ""))
		if err != nil {
			return nil, common.FormatError(i, "record %d: %v", i, err)
		}
		records = append(records, commlink.Record{Sent: *e.Sent, Data: data})
	}
	return records, nil
}

// ReadFile reads the named log.
func ReadFile(name string) ([]commlink.Record, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, common.FileError(name, err)
	}
	defer f.Close()
	recs, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return recs, nil
}

// Write encodes records in the same format, for building logs by hand.
func Write(w io.Writer, records []commlink.Record) error {
	entries := make([]entry, len(records))
	for i, r := range records {
		sent := r.Sent
		entries[i] = entry{Sent: &sent, HexData: hex.EncodeToString(r.Data)}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(entries); err != nil {
		return err
	}
	return enc.Close()
}
