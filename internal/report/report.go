// Package report renders priced chains for terminals and files.
package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/gocarina/gocsv"
	jsoniter "github.com/json-iterator/go"

	"github.com/contactkeval/option-greeks/internal/chain"
	"github.com/contactkeval/option-greeks/internal/greeks"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSON writes the full result, summary included, as indented JSON.
func WriteJSON(res *chain.Result, path string) error {
	b, err := json.MarshalIndent(res, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// WriteCSV writes the priced rows. Cells a degraded row does not carry
// stay empty.
func WriteCSV(rows []greeks.Report, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := gocsv.MarshalFile(&rows, f); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
