package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"example.com/cosmiqlink/internal/common"
	"example.com/cosmiqlink/internal/divelog"
	"example.com/cosmiqlink/internal/download"
	"example.com/cosmiqlink/internal/packet"
	"example.com/cosmiqlink/internal/report"
	"example.com/cosmiqlink/internal/terminal"
	"example.com/cosmiqlink/internal/transport"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}
	cmd := os.Args[1]
	switch cmd {
	case "ports":
		portsCmd(os.Args[2:])
	case "download":
		downloadCmd(os.Args[2:])
	case "parse":
		parseCmd(os.Args[2:])
	case "samples":
		samplesCmd(os.Args[2:])
	case "report":
		reportCmd(os.Args[2:])
	case "table":
		tableCmd(os.Args[2:])
	case "encode":
		encodeCmd(os.Args[2:])
	default:
		usage()
	}
}

func usage() {
	fmt.Printf(`cosmiqctl %s (built %s) <command> [options]

Commands:
  ports     list available serial ports
  download  --port <dev> [--baud <rate>] [--config <config.yaml>] [--mock <dump.txt>] [--interactive] [--idle <duration>] [--out <samples.jsonl>] [--raw <prefix>] [--pdf <report.pdf>] [--json <report.json>] [--metrics]
  parse     --dump <dump.txt> [--table <table.yaml>] [--blocks]
  samples   --dump <dump.txt> [--log <number>] [--out <samples.jsonl>]
  report    --dump <dump.txt> [--pdf <report.pdf>] [--json <report.json>] [--units <metric|imperial>]
  table     [--table <table.yaml>]
  encode    --setting <name> --value <n> [--table <table.yaml>]
`, version, buildDate)
}

// config is the optional yaml configuration shared by subcommands.
type config struct {
	Port              string           `yaml:"port"`
	Baud              int              `yaml:"baud"`
	Table             string           `yaml:"table"`
	IdleMillis        int              `yaml:"idleMillis"`
	ExpectHeaderBytes int              `yaml:"expectHeaderBytes"`
	ExpectBodyBytes   int              `yaml:"expectBodyBytes"`
	Logs              common.LogConfig `yaml:"logs"`
}

func loadConfig(path string) (config, error) {
	var cfg config
	if path == "" {
		return cfg, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, err
	}
	if cfg.Table != "" && !filepath.IsAbs(cfg.Table) {
		cfg.Table = filepath.Clean(filepath.Join(filepath.Dir(path), cfg.Table))
	}
	return cfg, nil
}

func newLogger(cfg config) *zap.Logger {
	logger, err := common.NewLogger(cfg.Logs)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging init: %v\n", err)
		return zap.NewNop()
	}
	return logger
}

func loadTable(path string) packet.Table {
	table := packet.DefaultTable()
	if path == "" {
		return table
	}
	overrides, err := packet.LoadTable(path)
	if err != nil {
		fmt.Println("load table:", err)
		os.Exit(1)
	}
	return table.Merge(overrides)
}

func portsCmd(args []string) {
	fs := flag.NewFlagSet("ports", flag.ExitOnError)
	fs.Parse(args)

	ports, err := transport.ListPorts()
	if err != nil {
		fmt.Println("list ports:", err)
		os.Exit(1)
	}
	if len(ports) == 0 {
		fmt.Println("no serial ports found")
		return
	}
	for _, p := range ports {
		fmt.Println(p)
	}
}

func downloadCmd(args []string) {
	fs := flag.NewFlagSet("download", flag.ExitOnError)
	configPath := fs.String("config", "", "configuration yaml")
	port := fs.String("port", "", "serial port")
	baud := fs.Int("baud", 115200, "baud rate")
	tablePath := fs.String("table", "", "command table yaml")
	mockDump := fs.String("mock", "", "run against a mock device seeded from a saved dump")
	interactive := fs.Bool("interactive", false, "drive the download through the TUI")
	idle := fs.Duration("idle", 1500*time.Millisecond, "quiet time that ends a phase")
	outJSONL := fs.String("out", "", "samples JSONL output")
	rawPrefix := fs.String("raw", "", "write raw blobs as <prefix>.header.bin and <prefix>.body.bin")
	pdfOut := fs.String("pdf", "", "PDF report output")
	jsonOut := fs.String("json", "", "JSON report output")
	metricsFlag := fs.Bool("metrics", false, "print download throughput metrics")
	fs.Parse(args)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Println("load config:", err)
		os.Exit(1)
	}
	if *port == "" {
		*port = cfg.Port
	}
	if cfg.Baud != 0 && *baud == 115200 {
		*baud = cfg.Baud
	}
	if *tablePath == "" {
		*tablePath = cfg.Table
	}
	if cfg.IdleMillis > 0 && *idle == 1500*time.Millisecond {
		*idle = time.Duration(cfg.IdleMillis) * time.Millisecond
	}
	logger := newLogger(cfg)
	defer logger.Sync()
	table := loadTable(*tablePath)

	if *interactive {
		terminal.StartApplication(transport.ListPorts, func(name string) (transport.Line, error) {
			return transport.OpenSerial(name, *baud, logger)
		}, logger)
		return
	}

	link, err := openLink(*port, *baud, *mockDump, table, logger)
	if err != nil {
		fmt.Println("open link:", err)
		os.Exit(1)
	}
	defer link.Close()

	var metrics *common.Metrics
	if *metricsFlag {
		metrics = common.NewMetrics()
	}
	session := download.NewSession(link, download.Options{
		Table:   table,
		Logger:  logger,
		Metrics: metrics,
	})
	if err := session.Start(); err != nil {
		fmt.Println("start:", err)
		os.Exit(1)
	}
	if cfg.ExpectHeaderBytes > 0 {
		session.ExpectHeaderBytes(cfg.ExpectHeaderBytes)
	}
	if cfg.ExpectBodyBytes > 0 {
		session.ExpectBodyBytes(cfg.ExpectBodyBytes)
	}

	result, err := runToCompletion(session, link, *idle)
	if err != nil {
		fmt.Println("download:", err)
		os.Exit(1)
	}

	fmt.Printf("downloaded %d dives, %s body, fingerprint %s\n",
		len(result.Headers), common.FormatBytes(int64(result.BodyLen())), result.Fingerprint())

	if *rawPrefix != "" {
		if err := writeRawBlobs(result, *rawPrefix); err != nil {
			fmt.Println("write raw:", err)
			os.Exit(1)
		}
	}
	if *outJSONL != "" {
		if err := writeDivesJSONL(result, *outJSONL); err != nil {
			fmt.Println("write dives:", err)
			os.Exit(1)
		}
	}
	rep := report.Build(result)
	if *jsonOut != "" {
		if err := report.SaveJSON(rep, *jsonOut); err != nil {
			fmt.Println("write report:", err)
			os.Exit(1)
		}
	}
	if *pdfOut != "" {
		if err := report.SaveDivePDF(rep, report.UnitsMetric, *pdfOut); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
	}
	if metrics != nil {
		snap := metrics.Snapshot()
		fmt.Printf("Metrics: duration=%s packets=%d processed=%s throughput=%.1f KB/s\n",
			snap.Duration.Round(10*time.Millisecond),
			snap.Packets,
			common.FormatBytes(snap.Bytes),
			snap.ThroughputBytesPerSecond()/1000,
		)
	}
}

// openLink opens the serial port, or a mock device seeded from a saved dump
// when --mock is given.
func openLink(port string, baud int, mockDump string, table packet.Table, logger *zap.Logger) (transport.Line, error) {
	if mockDump != "" {
		f, err := os.Open(mockDump)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		dump, err := divelog.ReadDump(f, table)
		if err != nil {
			return nil, err
		}
		dev := transport.NewMockDevice(dump.HeaderBytes, dump.BodyBytes)
		return dev.Transport(), nil
	}
	if port == "" {
		return nil, errors.New("required: --port (or --mock)")
	}
	return transport.OpenSerial(port, baud, logger)
}

// runToCompletion drives the two-phase download: device lines feed the
// session, and a quiet link ends the active phase.
func runToCompletion(session *download.Session, link transport.Line, idle time.Duration) (*download.Result, error) {
	for {
		select {
		case line, ok := <-link.Lines():
			if !ok {
				return nil, errors.New("link closed mid-download")
			}
			session.OnLine(line)
			if result, ok := session.Result(); ok {
				return result, nil
			}
		case <-time.After(idle):
			switch session.Phase() {
			case download.PhaseAwaitingHeader:
				if err := session.FinishHeaderPhase(); err != nil {
					return nil, err
				}
			case download.PhaseAwaitingBody:
				return session.FinishBodyPhase()
			default:
				return nil, fmt.Errorf("unexpected phase %s", session.Phase())
			}
		}
	}
}

func writeRawBlobs(result *download.Result, prefix string) error {
	if err := os.WriteFile(prefix+".header.bin", result.HeaderBlob(), 0644); err != nil {
		return err
	}
	return os.WriteFile(prefix+".body.bin", result.BodyBlob(), 0644)
}

// diveRecord is one JSONL line of download output: the logbook entry with its
// full profile embedded.
type diveRecord struct {
	Header  divelog.Header   `json:"header"`
	Samples []divelog.Sample `json:"samples"`
}

func writeDivesJSONL(result *download.Result, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, hdr := range result.Headers {
		samples, err := result.ExtractSamples(hdr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log %d: %v\n", hdr.LogNumber, err)
		}
		if err := enc.Encode(diveRecord{Header: hdr, Samples: samples}); err != nil {
			return err
		}
	}
	return nil
}

// sampleRecord is one JSONL line of dive profile output.
type sampleRecord struct {
	LogNumber   uint16  `json:"logNumber"`
	TimeSeconds uint32  `json:"timeSeconds"`
	DepthMeters float64 `json:"depthMeters"`
	Marker      byte    `json:"marker"`
}

func writeSamplesJSONL(result *download.Result, headers []divelog.Header, out string) error {
	f, err := os.Create(out)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	for _, hdr := range headers {
		samples, err := result.ExtractSamples(hdr)
		if err != nil {
			fmt.Fprintf(os.Stderr, "log %d: %v\n", hdr.LogNumber, err)
			continue
		}
		for _, s := range samples {
			rec := sampleRecord{
				LogNumber:   hdr.LogNumber,
				TimeSeconds: s.TimeSeconds,
				DepthMeters: s.DepthMeters,
				Marker:      s.Marker,
			}
			if err := enc.Encode(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

func loadDumpResult(path string, table packet.Table) (*download.Result, *divelog.Dump) {
	f, err := os.Open(path)
	if err != nil {
		fmt.Println("open dump:", err)
		os.Exit(1)
	}
	defer f.Close()
	dump, err := divelog.ReadDump(f, table)
	if err != nil {
		fmt.Println("read dump:", err)
		os.Exit(1)
	}
	return download.NewResult(dump.HeaderBytes, dump.BodyBytes), dump
}

func parseCmd(args []string) {
	fs := flag.NewFlagSet("parse", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "saved dump capture")
	tablePath := fs.String("table", "", "command table yaml")
	blocks := fs.Bool("blocks", false, "also list body data blocks")
	fs.Parse(args)

	if *dumpPath == "" {
		fmt.Println("required: --dump")
		os.Exit(1)
	}
	result, dump := loadDumpResult(*dumpPath, loadTable(*tablePath))

	fmt.Printf("%d lines, %d skipped, %s header, %s body\n",
		dump.Lines, dump.Skipped,
		common.FormatBytes(int64(len(dump.HeaderBytes))),
		common.FormatBytes(int64(len(dump.BodyBytes))))

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "LOG\tDATE\tMODE\tDURATION\tMAX DEPTH\tMIN TEMP\tO2\tPERIOD\tSECTORS")
	for _, hdr := range result.Headers {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d min\t%.2f m\t%.1f C\t%d%%\t%ds\t%d..%d\n",
			hdr.LogNumber, hdr.Date.String(), hdr.Mode, hdr.DurationMinutes,
			hdr.MaxDepthMeters, hdr.MinTempCelsius, hdr.OxygenPercent,
			hdr.LogPeriod, hdr.StartSector, hdr.EndSector)
	}
	w.Flush()

	if *blocks {
		for i, block := range divelog.DataBlocks(dump.BodyBytes) {
			fmt.Printf("block %d: %s\n", i, common.FormatBytes(int64(len(block))))
		}
	}
}

func samplesCmd(args []string) {
	fs := flag.NewFlagSet("samples", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "saved dump capture")
	tablePath := fs.String("table", "", "command table yaml")
	logNumber := fs.Int("log", 0, "limit to one log number")
	out := fs.String("out", "", "samples JSONL output, stdout when empty")
	fs.Parse(args)

	if *dumpPath == "" {
		fmt.Println("required: --dump")
		os.Exit(1)
	}
	result, _ := loadDumpResult(*dumpPath, loadTable(*tablePath))

	headers := result.Headers
	if *logNumber != 0 {
		headers = nil
		for _, hdr := range result.Headers {
			if int(hdr.LogNumber) == *logNumber {
				headers = append(headers, hdr)
			}
		}
		if len(headers) == 0 {
			fmt.Printf("log %d not found\n", *logNumber)
			os.Exit(1)
		}
	}

	if *out == "" {
		enc := json.NewEncoder(os.Stdout)
		for _, hdr := range headers {
			samples, err := result.ExtractSamples(hdr)
			if err != nil {
				fmt.Fprintf(os.Stderr, "log %d: %v\n", hdr.LogNumber, err)
				continue
			}
			for _, s := range samples {
				enc.Encode(sampleRecord{LogNumber: hdr.LogNumber, TimeSeconds: s.TimeSeconds, DepthMeters: s.DepthMeters, Marker: s.Marker})
			}
		}
		return
	}
	if err := writeSamplesJSONL(result, headers, *out); err != nil {
		fmt.Println("write samples:", err)
		os.Exit(1)
	}
}

func reportCmd(args []string) {
	fs := flag.NewFlagSet("report", flag.ExitOnError)
	dumpPath := fs.String("dump", "", "saved dump capture")
	tablePath := fs.String("table", "", "command table yaml")
	pdfOut := fs.String("pdf", "", "PDF report output")
	jsonOut := fs.String("json", "", "JSON report output")
	unitsFlag := fs.String("units", "metric", "measurement system: metric or imperial")
	fs.Parse(args)

	if *dumpPath == "" {
		fmt.Println("required: --dump")
		os.Exit(1)
	}
	if *pdfOut == "" && *jsonOut == "" {
		fmt.Println("required: --pdf or --json")
		os.Exit(1)
	}
	units, err := report.ParseUnits(*unitsFlag)
	if err != nil {
		fmt.Println("units:", err)
		os.Exit(1)
	}
	result, _ := loadDumpResult(*dumpPath, loadTable(*tablePath))
	rep := report.Build(result)

	if *jsonOut != "" {
		if err := report.SaveJSON(rep, *jsonOut); err != nil {
			fmt.Println("write report:", err)
			os.Exit(1)
		}
	}
	if *pdfOut != "" {
		if err := report.SaveDivePDF(rep, units, *pdfOut); err != nil {
			fmt.Println("write pdf:", err)
			os.Exit(1)
		}
	}
	fmt.Printf("report: %d dives\n", len(rep.Dives))
}

func tableCmd(args []string) {
	fs := flag.NewFlagSet("table", flag.ExitOnError)
	tablePath := fs.String("table", "", "command table yaml")
	fs.Parse(args)

	table := loadTable(*tablePath)
	ids := make([]int, 0, len(table))
	for id := range table {
		ids = append(ids, int(id))
	}
	sort.Ints(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CMD\tNAME\tALGORITHM\tTARGET\tSWAPPED")
	for _, id := range ids {
		spec := table[byte(id)]
		fmt.Fprintf(w, "0x%02x\t%s\t%s\t0x%02x\t%v\n",
			spec.Command, spec.Name, spec.Algorithm, spec.Target, spec.Swapped)
	}
	w.Flush()
}

func encodeCmd(args []string) {
	fs := flag.NewFlagSet("encode", flag.ExitOnError)
	tablePath := fs.String("table", "", "command table yaml")
	setting := fs.String("setting", "", "setting name")
	value := fs.Int("value", -1, "setting value")
	fs.Parse(args)

	if *setting == "" {
		fmt.Println("required: --setting")
		names := make([]string, 0)
		for _, def := range download.Settings() {
			names = append(names, fmt.Sprintf("%s (%d..%d %s)", def.Name, def.Min, def.Max, def.Unit))
		}
		fmt.Println("settings:\n  " + strings.Join(names, "\n  "))
		os.Exit(1)
	}
	if *value < 0 || *value > 0xFFFF {
		fmt.Println("required: --value in 0..65535")
		os.Exit(1)
	}
	line, err := download.EncodeSettingByName(loadTable(*tablePath), *setting, uint16(*value))
	if err != nil {
		fmt.Println("encode:", err)
		os.Exit(1)
	}
	fmt.Println(line)
}
