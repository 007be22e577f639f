// bench - binjson size benchmark runner
//
// Compares minified JSON against the binary encoding, plain and
// compressed (snappy, zstd), across a corpus of sample documents.
//
// Output: CSV and markdown summary
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/golang/snappy"
	"github.com/klauspost/compress/zstd"

	"github.com/Neumenon/binjson/binjson"
)

type CaseResult struct {
	Name        string
	JSONBytes   int
	BinBytes    int
	SnappyBytes int
	ZstdBytes   int
	BinPct      float64
	SnappyPct   float64
	ZstdPct     float64
}

type Manifest struct {
	Version     string `json:"version"`
	Description string `json:"description"`
	Cases       []struct {
		Name string `json:"name"`
		File string `json:"file"`
	} `json:"cases"`
}

type benchCase struct {
	name  string
	value *binjson.Value
}

func main() {
	cases, corpus := loadCases()

	fmt.Fprintf(os.Stderr, "binjson Benchmark Runner\n")
	fmt.Fprintf(os.Stderr, "========================\n")
	fmt.Fprintf(os.Stderr, "Corpus: %s (%d cases)\n\n", corpus, len(cases))

	zstdEnc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		fmt.Fprintf(os.Stderr, "zstd init: %v\n", err)
		os.Exit(1)
	}
	defer zstdEnc.Close()

	var results []CaseResult
	var totalJSON, totalBin, totalSnappy, totalZstd int

	for _, c := range cases {
		jsonMin, err := binjson.ToJSON(c.value)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skip %s: %v\n", c.name, err)
			continue
		}
		bin := binjson.Encode(c.value)
		snap := snappy.Encode(nil, bin)
		zst := zstdEnc.EncodeAll(bin, nil)

		results = append(results, CaseResult{
			Name:        c.name,
			JSONBytes:   len(jsonMin),
			BinBytes:    len(bin),
			SnappyBytes: len(snap),
			ZstdBytes:   len(zst),
			BinPct:      savingsPct(len(jsonMin), len(bin)),
			SnappyPct:   savingsPct(len(jsonMin), len(snap)),
			ZstdPct:     savingsPct(len(jsonMin), len(zst)),
		})

		totalJSON += len(jsonMin)
		totalBin += len(bin)
		totalSnappy += len(snap)
		totalZstd += len(zst)
	}

	// Output CSV
	csvPath := "bench_results.csv"
	if csvFile, err := os.Create(csvPath); err == nil {
		writeCSV(csvFile, results)
		csvFile.Close()
		fmt.Fprintf(os.Stderr, "CSV written to: %s\n", csvPath)
	}

	// Output Markdown
	mdPath := "BENCH_" + time.Now().Format("2006-01-02") + ".md"
	if mdFile, err := os.Create(mdPath); err == nil {
		writeMarkdown(mdFile, results, totalJSON, totalBin, totalSnappy, totalZstd, corpus)
		mdFile.Close()
		fmt.Fprintf(os.Stderr, "Markdown written to: %s\n", mdPath)
	}

	// Summary to stdout
	fmt.Printf("\n=== SUMMARY ===\n")
	fmt.Printf("Cases:         %d\n", len(results))
	fmt.Printf("JSON total:    %s\n", humanize.Bytes(uint64(totalJSON)))
	fmt.Printf("Binary total:  %s (%.1f%% saved)\n", humanize.Bytes(uint64(totalBin)), savingsPct(totalJSON, totalBin))
	fmt.Printf("Snappy total:  %s (%.1f%% saved)\n", humanize.Bytes(uint64(totalSnappy)), savingsPct(totalJSON, totalSnappy))
	fmt.Printf("Zstd total:    %s (%.1f%% saved)\n", humanize.Bytes(uint64(totalZstd)), savingsPct(totalJSON, totalZstd))
}

func savingsPct(base, got int) float64 {
	if base == 0 {
		return 0
	}
	return float64(base-got) / float64(base) * 100.0
}

// loadCases reads the manifest corpus when present, falling back to the
// built-in corpus.
func loadCases() ([]benchCase, string) {
	testdataDir := findTestdata()
	if testdataDir == "" {
		return builtinCorpus(), "built-in"
	}

	manifestData, err := os.ReadFile(filepath.Join(testdataDir, "manifest.json"))
	if err != nil {
		return builtinCorpus(), "built-in"
	}
	var manifest Manifest
	if err := json.Unmarshal(manifestData, &manifest); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot parse manifest: %v\n", err)
		os.Exit(1)
	}

	var cases []benchCase
	for _, c := range manifest.Cases {
		jsonData, err := os.ReadFile(filepath.Join(testdataDir, c.File))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skip %s: %v\n", c.Name, err)
			continue
		}
		v, err := binjson.FromJSON(jsonData)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Skip %s: parse error: %v\n", c.Name, err)
			continue
		}
		cases = append(cases, benchCase{name: c.Name, value: v})
	}
	return cases, manifest.Version
}

func findTestdata() string {
	paths := []string{
		"testdata/corpus",
		"../testdata/corpus",
		"../../testdata/corpus",
	}
	for _, p := range paths {
		if _, err := os.Stat(filepath.Join(p, "manifest.json")); err == nil {
			return p
		}
	}
	return ""
}

// builtinCorpus returns representative documents so the benchmark runs
// without fixture files.
func builtinCorpus() []benchCase {
	logEvents := binjson.Array()
	for i := 0; i < 50; i++ {
		logEvents.Append(binjson.Object(
			binjson.Field("timestamp", binjson.Int(1700000000000+int64(i)*1250)),
			binjson.Field("severity", binjson.Str([]string{"debug", "info", "warn", "error"}[i%4])),
			binjson.Field("logger", binjson.Str("ingest.pipeline")),
			binjson.Field("message", binjson.Str(fmt.Sprintf("processed batch %d of 50", i+1))),
			binjson.Field("duration_ms", binjson.Float(float64(i%17)*3.5)),
		))
	}

	metrics := binjson.Array()
	for i := 0; i < 100; i++ {
		metrics.Append(binjson.Object(
			binjson.Field("name", binjson.Str("http_request_duration_seconds")),
			binjson.Field("instance", binjson.Str(fmt.Sprintf("node-%02d:9100", i%8))),
			binjson.Field("value", binjson.Float(0.001*float64(i*i%977))),
			binjson.Field("ts", binjson.Int(1700000000+int64(i))),
		))
	}

	users := binjson.Array()
	for i := 0; i < 25; i++ {
		users.Append(binjson.Object(
			binjson.Field("id", binjson.Int(int64(10000+i))),
			binjson.Field("name", binjson.Str(fmt.Sprintf("user_%04d", i))),
			binjson.Field("email", binjson.Str(fmt.Sprintf("user_%04d@example.com", i))),
			binjson.Field("active", binjson.Bool(i%7 != 0)),
			binjson.Field("roles", binjson.Array(binjson.Str("reader"), binjson.Str("writer"))),
			binjson.Field("last_login", func() *binjson.Value {
				if i%5 == 0 {
					return binjson.Null()
				}
				return binjson.Int(1690000000 + int64(i)*86400)
			}()),
		))
	}

	config := binjson.Object(
		binjson.Field("listen_addr", binjson.Str("0.0.0.0:8080")),
		binjson.Field("read_timeout_ms", binjson.Int(5000)),
		binjson.Field("max_body_bytes", binjson.Int(1<<20)),
		binjson.Field("tls", binjson.Object(
			binjson.Field("enabled", binjson.Bool(true)),
			binjson.Field("cert_file", binjson.Str("/etc/certs/server.pem")),
			binjson.Field("key_file", binjson.Str("/etc/certs/server-key.pem")),
		)),
		binjson.Field("backends", binjson.Array(
			binjson.Object(
				binjson.Field("name", binjson.Str("primary")),
				binjson.Field("url", binjson.Str("http://10.0.1.10:9000")),
				binjson.Field("weight", binjson.Float(0.75)),
			),
			binjson.Object(
				binjson.Field("name", binjson.Str("fallback")),
				binjson.Field("url", binjson.Str("http://10.0.1.11:9000")),
				binjson.Field("weight", binjson.Float(0.25)),
			),
		)),
	)

	deep := binjson.Int(0)
	for i := 0; i < 30; i++ {
		deep = binjson.Object(
			binjson.Field("depth", binjson.Int(int64(30-i))),
			binjson.Field("child", deep),
		)
	}

	return []benchCase{
		{name: "log_events_50", value: logEvents},
		{name: "metrics_batch_100", value: metrics},
		{name: "user_records_25", value: users},
		{name: "service_config", value: config},
		{name: "deep_nesting_30", value: deep},
	}
}

func writeCSV(w io.Writer, results []CaseResult) {
	fmt.Fprintln(w, "name,json_bytes,bin_bytes,bin_pct,snappy_bytes,snappy_pct,zstd_bytes,zstd_pct")
	for _, r := range results {
		fmt.Fprintf(w, "%s,%d,%d,%.1f,%d,%.1f,%d,%.1f\n",
			r.Name, r.JSONBytes, r.BinBytes, r.BinPct,
			r.SnappyBytes, r.SnappyPct, r.ZstdBytes, r.ZstdPct)
	}
}

func writeMarkdown(w io.Writer, results []CaseResult, totalJSON, totalBin, totalSnappy, totalZstd int, corpus string) {
	fmt.Fprintf(w, "# binjson Benchmark Results\n\n")
	fmt.Fprintf(w, "**Date:** %s  \n", time.Now().Format("2006-01-02"))
	fmt.Fprintf(w, "**Corpus:** %s (%d cases)  \n\n", corpus, len(results))

	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Encoding | Bytes | Savings vs JSON |\n")
	fmt.Fprintf(w, "|----------|-------|----------------|\n")
	fmt.Fprintf(w, "| JSON (minified) | %d | - |\n", totalJSON)
	fmt.Fprintf(w, "| Binary | %d | %.1f%% |\n", totalBin, savingsPct(totalJSON, totalBin))
	fmt.Fprintf(w, "| Binary + snappy | %d | %.1f%% |\n", totalSnappy, savingsPct(totalJSON, totalSnappy))
	fmt.Fprintf(w, "| Binary + zstd | %d | %.1f%% |\n\n", totalZstd, savingsPct(totalJSON, totalZstd))

	// Best and worst cases for the plain binary encoding
	sorted := make([]CaseResult, len(results))
	copy(sorted, results)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].BinPct > sorted[j].BinPct
	})

	fmt.Fprintf(w, "## Top Space Savings (plain binary)\n\n")
	fmt.Fprintf(w, "| Case | JSON | Binary | Saved |\n")
	fmt.Fprintf(w, "|------|------|--------|-------|\n")
	for i := 0; i < len(sorted) && i < 5; i++ {
		r := sorted[i]
		fmt.Fprintf(w, "| %s | %d | %d | %.1f%% |\n", r.Name, r.JSONBytes, r.BinBytes, r.BinPct)
	}

	fmt.Fprintf(w, "\n### Cases Where JSON is Smaller\n\n")
	var worse []CaseResult
	for _, r := range results {
		if r.BinBytes > r.JSONBytes {
			worse = append(worse, r)
		}
	}
	if len(worse) == 0 {
		fmt.Fprintf(w, "_None - the binary encoding is smaller or equal in all cases._\n\n")
	} else {
		fmt.Fprintf(w, "| Case | JSON | Binary | Overhead |\n")
		fmt.Fprintf(w, "|------|------|--------|----------|\n")
		for _, r := range worse {
			fmt.Fprintf(w, "| %s | %d | %d | +%d bytes |\n", r.Name, r.JSONBytes, r.BinBytes, r.BinBytes-r.JSONBytes)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "## Methodology\n\n")
	fmt.Fprintf(w, "- **JSON:** Minified via `binjson.ToJSON` (no whitespace, document order kept)\n")
	fmt.Fprintf(w, "- **Binary:** `binjson.Encode` output\n")
	fmt.Fprintf(w, "- **Compressed:** snappy and zstd (default level) over the binary encoding\n\n")

	fmt.Fprintf(w, "## Detailed Results\n\n")
	fmt.Fprintf(w, "| Case | JSON | Binary | Bin %% | Snappy | Snappy %% | Zstd | Zstd %% |\n")
	fmt.Fprintf(w, "|------|------|--------|-------|--------|----------|------|--------|\n")
	for _, r := range results {
		fmt.Fprintf(w, "| %s | %d | %d | %s | %d | %s | %d | %s |\n",
			truncateName(r.Name, 25), r.JSONBytes,
			r.BinBytes, signedPct(r.BinPct),
			r.SnappyBytes, signedPct(r.SnappyPct),
			r.ZstdBytes, signedPct(r.ZstdPct))
	}
}

func signedPct(pct float64) string {
	if pct > 0 {
		return fmt.Sprintf("+%.1f%%", pct)
	}
	return fmt.Sprintf("%.1f%%", pct)
}

func truncateName(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
