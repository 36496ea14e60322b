// Command convcode is a CLI front end for the pkg/convcode encoder and
// Viterbi decoder: encode/decode a bit file against a configurable
// polynomial set, run a batch of jobs from a YAML file, or serve a live
// decode-progress WebSocket while decoding one file.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/dbehnke/convcode/pkg/bitstream"
	"github.com/dbehnke/convcode/pkg/convcode"
	"github.com/dbehnke/convcode/pkg/interleaver"
	"github.com/dbehnke/convcode/pkg/jobconfig"
	"github.com/dbehnke/convcode/pkg/logger"
	"github.com/dbehnke/convcode/pkg/runlog"
	"github.com/dbehnke/convcode/pkg/web"
)

var (
	version   = "dev"
	gitCommit = "unknown"
)

// polyList is a flag.Value collecting repeated -p flags into a slice.
type polyList []uint32

func (p *polyList) String() string {
	parts := make([]string, len(*p))
	for i, v := range *p {
		parts[i] = strconv.FormatUint(uint64(v), 8)
	}
	return strings.Join(parts, ",")
}

func (p *polyList) Set(s string) error {
	v, err := strconv.ParseUint(s, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid polynomial %q: %w", s, err)
	}
	*p = append(*p, uint32(v))
	return nil
}

func main() {
	log := logger.New(logger.Config{Level: "info", Format: "text"})

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "encode":
		os.Exit(runEncodeDecode(log, "encode", os.Args[2:]))
	case "decode":
		os.Exit(runEncodeDecode(log, "decode", os.Args[2:]))
	case "batch":
		os.Exit(runBatch(log, os.Args[2:]))
	case "serve":
		os.Exit(runServe(log, os.Args[2:]))
	case "-version", "--version":
		fmt.Printf("convcode %s (%s)\n", version, gitCommit)
		os.Exit(0)
	default:
		usage()
		os.Exit(1)
	}
}

func maxValue(a, b uint) uint {
	if a > b {
		return a
	}
	return b
}

// packBits packs a sequence of 0/1 values into bytes low-bit-first, the
// same convention bitstream.Extract reads back, so a bit slice produced by
// interleaver.Interleave's callback lands in the on-disk layout a later
// decode expects.
func packBits(bits []uint32) ([]byte, error) {
	var out []byte
	w := bitstream.NewWriter(func(b byte, n uint) error {
		out = append(out, b)
		return nil
	})
	for _, bit := range bits {
		if err := w.Append(bit, 1); err != nil {
			return nil, err
		}
	}
	if err := w.Flush(); err != nil {
		return nil, err
	}
	return out, nil
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: convcode <encode|decode|batch|serve> [flags]")
}

func runEncodeDecode(log *logger.Logger, mode string, args []string) int {
	fs := flag.NewFlagSet(mode, flag.ContinueOnError)
	doTail := fs.Bool("t", false, "append/expect a zero-bit tail")
	recursive := fs.Bool("x", false, "use the recursive-systematic encoder variant")
	interleaveCols := fs.Uint("r", 0, "interleave columns (0 disables interleaving)")
	startState := fs.Uint("s", convcode.DefaultStartState, "encoder/decoder start state")
	initOther := fs.Uint("i", convcode.DefaultInitOtherStates, "decoder init_other_states")
	var polys polyList
	fs.Var(&polys, "p", "generator polynomial (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	rest := fs.Args()
	if len(rest) < 2 {
		fmt.Fprintln(os.Stderr, "usage: convcode", mode, "[flags] K BITFILE")
		return 1
	}
	k, err := strconv.ParseUint(rest[0], 0, 32)
	if err != nil {
		log.Error("invalid K", logger.Error(err))
		return 1
	}
	if len(polys) == 0 {
		log.Error("at least one -p polynomial is required")
		return 1
	}

	raw, err := os.ReadFile(rest[1])
	if err != nil {
		log.Error("failed to read input", logger.Error(err))
		return 1
	}

	metrics := convcode.NewCollector()
	start := time.Now()
	var outBits uint
	var numErrs uint32

	switch mode {
	case "encode":
		var out []byte
		codec, err := convcode.NewCodec(convcode.Config{
			K: uint(k), Polys: polys, DoTail: *doTail, Recursive: *recursive,
			EncSink: func(b byte, n uint) error { out = append(out, b); return nil },
			Metrics: metrics,
			Log:     log.WithComponent("convcode"),
		})
		if err != nil {
			log.Error("failed to build codec", logger.Error(err))
			return 1
		}
		codec.ReinitEncoder(uint32(*startState))
		if err := codec.Enc.EncodeData(raw, uint(len(raw))*8); err != nil {
			log.Error("encode failed", logger.Error(err))
			return 1
		}
		outBits, err = codec.Enc.EncodeFinish()
		if err != nil {
			log.Error("encode finish failed", logger.Error(err))
			return 1
		}
		if *interleaveCols > 0 {
			var il []uint32
			interleaver.Interleave(*interleaveCols, out, outBits, func(bit uint32) { il = append(il, bit) })
			out, err = packBits(il)
			if err != nil {
				log.Error("failed to pack interleaved output", logger.Error(err))
				return 1
			}
		}
		if err := os.WriteFile(rest[1]+".out", out, 0644); err != nil {
			log.Error("failed to write output", logger.Error(err))
			return 1
		}

	case "decode":
		codedBits := uint(len(raw)) * 8
		if *interleaveCols > 0 {
			bits := make([]uint32, codedBits)
			for i := range bits {
				bits[i] = (uint32(raw[i/8]) >> (uint(i) % 8)) & 1
			}
			raw = interleaver.Deinterleave(*interleaveCols, bits, codedBits)
		}

		var decoded []byte
		dec, err := convcode.NewCodec(convcode.Config{
			K: uint(k), Polys: polys, DoTail: *doTail, Recursive: *recursive,
			MaxDecodeLenBits: codedBits,
			DecSink:          func(b byte, n uint) error { decoded = append(decoded, b); return nil },
			Metrics:          metrics,
			Log:              log.WithComponent("convcode"),
		})
		if err != nil {
			log.Error("failed to build codec", logger.Error(err))
			return 1
		}
		if err := dec.ReinitDecoder(uint32(*startState), uint32(*initOther)); err != nil {
			log.Error("reinit failed", logger.Error(err))
			return 1
		}
		if err := dec.Dec.DecodeData(raw, codedBits, nil); err != nil {
			log.Error("decode failed", logger.Error(err))
			return 1
		}
		outBits, numErrs, err = dec.Dec.DecodeFinish()
		if err != nil {
			log.Error("decode finish failed", logger.Error(err))
			return 1
		}
		if err := os.WriteFile(rest[1]+".out", decoded, 0644); err != nil {
			log.Error("failed to write output", logger.Error(err))
			return 1
		}
	}

	enc, dec := metrics.Snapshot()
	log.Info("done",
		logger.String("mode", mode),
		logger.Uint64("symbols_encoded", enc),
		logger.Uint64("symbols_decoded", dec),
		logger.String("duration", time.Since(start).String()),
		logger.String("out_bits", humanize.Comma(int64(outBits))))
	if mode == "decode" {
		log.Info("errors", logger.Uint("num_errs", uint(numErrs)))
	}
	return 0
}

func runBatch(log *logger.Logger, args []string) int {
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	configFile := fs.String("config", "jobs.yaml", "path to batch job file")
	dbPath := fs.String("db", "convcode-runs.db", "path to run-history SQLite database")
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg, err := jobconfig.Load(*configFile)
	if err != nil {
		log.Error("failed to load job file", logger.Error(err))
		return 1
	}

	store, err := runlog.Open(runlog.Config{Path: *dbPath}, log.WithComponent("runlog"))
	if err != nil {
		log.Error("failed to open run-history database", logger.Error(err))
		return 1
	}
	defer store.Close()

	status := 0
	for _, job := range cfg.Jobs {
		if err := runOneJob(log, store, job); err != nil {
			log.Error("job failed", logger.String("job", job.Name), logger.Error(err))
			status = 1
		}
	}
	return status
}

func runOneJob(log *logger.Logger, store *runlog.Store, job jobconfig.Job) error {
	start := time.Now()

	raw, err := os.ReadFile(job.Input)
	if err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	polys := make([]uint32, len(job.Polys))
	for i, p := range job.Polys {
		polys[i] = uint32(p)
	}
	polyStrs := make([]string, len(job.Polys))
	for i, p := range job.Polys {
		polyStrs[i] = strconv.FormatInt(int64(p), 8)
	}

	var out []byte
	var outBits uint
	var numErrs uint32

	switch strings.ToLower(job.Mode) {
	case "encode":
		codec, err := convcode.NewCodec(convcode.Config{
			K: job.K, Polys: polys, DoTail: job.DoTail, Recursive: job.Recursive,
			EncSink: func(b byte, n uint) error { out = append(out, b); return nil },
		})
		if err != nil {
			return err
		}
		if err := codec.Enc.EncodeData(raw, uint(len(raw))*8); err != nil {
			return err
		}
		outBits, err = codec.Enc.EncodeFinish()
		if err != nil {
			return err
		}
		if job.Interleave > 0 {
			var il []uint32
			interleaver.Interleave(job.Interleave, out, outBits, func(bit uint32) { il = append(il, bit) })
			out, err = packBits(il)
			if err != nil {
				return fmt.Errorf("packing interleaved output: %w", err)
			}
		}
	case "decode":
		codedBits := uint(len(raw)) * 8
		if job.Interleave > 0 {
			bits := make([]uint32, codedBits)
			for i := range bits {
				bits[i] = (uint32(raw[i/8]) >> (uint(i) % 8)) & 1
			}
			raw = interleaver.Deinterleave(job.Interleave, bits, codedBits)
		}
		codec, err := convcode.NewCodec(convcode.Config{
			K: job.K, Polys: polys, DoTail: job.DoTail, Recursive: job.Recursive,
			MaxDecodeLenBits: codedBits,
			DecSink:          func(b byte, n uint) error { out = append(out, b); return nil },
		})
		if err != nil {
			return err
		}
		if err := codec.Dec.DecodeData(raw, codedBits, nil); err != nil {
			return err
		}
		outBits, numErrs, err = codec.Dec.DecodeFinish()
		if err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown job mode %q", job.Mode)
	}

	if err := os.WriteFile(job.Output, out, 0644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}

	run := &runlog.Run{
		JobName:    job.Name,
		Mode:       job.Mode,
		K:          int(job.K),
		Polys:      strings.Join(polyStrs, ","),
		DoTail:     job.DoTail,
		Recursive:  job.Recursive,
		BitsIn:     len(raw) * 8,
		BitsOut:    int(outBits),
		NumErrs:    numErrs,
		DurationMS: time.Since(start).Milliseconds(),
		StartedAt:  start,
	}
	if err := store.Record(run); err != nil {
		return fmt.Errorf("recording run history: %w", err)
	}

	log.Info("job complete",
		logger.String("job", job.Name),
		logger.String("mode", job.Mode),
		logger.String("bits_out", humanize.Comma(int64(outBits))),
		logger.Uint("num_errs", uint(numErrs)))
	return nil
}

func runServe(log *logger.Logger, args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", ":8080", "address to listen on")
	k := fs.Uint("k", 3, "constraint length")
	maxDecodeBits := fs.Uint("max-decode-bits", 4096, "trellis capacity in bits")
	var polys polyList
	fs.Var(&polys, "p", "generator polynomial (repeatable)")
	if err := fs.Parse(args); err != nil {
		return 1
	}
	if len(polys) == 0 {
		polys = polyList{5, 7}
	}

	hub := web.NewProgressHub(log.WithComponent("web"))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	mux := http.NewServeMux()
	mux.Handle("/progress", hub.Handler())
	mux.HandleFunc("/decode", func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Query().Get("file")
		if path == "" {
			http.Error(w, "missing file query parameter", http.StatusBadRequest)
			return
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}

		var decoded []byte
		codedBits := uint(len(raw)) * 8
		codec, err := convcode.NewCodec(convcode.Config{
			K: *k, Polys: polys, DoTail: true,
			MaxDecodeLenBits: maxValue(codedBits, *maxDecodeBits),
			DecSink:          func(b byte, n uint) error { decoded = append(decoded, b); return nil },
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		const chunkBytes = 4
		for pos := 0; pos < len(raw); pos += chunkBytes {
			end := pos + chunkBytes
			if end > len(raw) {
				end = len(raw)
			}
			chunk := raw[pos:end]
			if err := codec.Dec.DecodeData(chunk, uint(len(chunk))*8, nil); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			hub.Broadcast(web.ProgressEvent{
				Column:       uint(end),
				TotalColumns: uint(len(raw)),
			})
		}

		outBits, numErrs, err := codec.Dec.DecodeFinish()
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		hub.Broadcast(web.ProgressEvent{Column: uint(len(raw)), TotalColumns: uint(len(raw)), CumulativeMetric: numErrs})

		w.Header().Set("X-Out-Bits", strconv.FormatUint(uint64(outBits), 10))
		w.Header().Set("X-Num-Errs", strconv.FormatUint(uint64(numErrs), 10))
		w.Write(decoded)
	})

	server := &http.Server{Addr: *addr, Handler: mux}
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		log.Info("serving decode-progress websocket", logger.String("addr", *addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", logger.Error(err))
		}
	}()

	<-sigChan
	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = server.Shutdown(shutdownCtx)
	return 0
}
