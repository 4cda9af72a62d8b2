package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/saworbit/chunkkeeper/internal/metrics"
	"github.com/saworbit/chunkkeeper/pkg/archive"
	"github.com/saworbit/chunkkeeper/pkg/chunker"
	"github.com/saworbit/chunkkeeper/pkg/clone"
	"github.com/saworbit/chunkkeeper/pkg/compress"
	"github.com/saworbit/chunkkeeper/pkg/config"
	"github.com/saworbit/chunkkeeper/pkg/merkle"
	"github.com/saworbit/chunkkeeper/pkg/pipeline"
	"github.com/saworbit/chunkkeeper/pkg/store"
)

const appVersion = "1.0.0"

var debugEnabled bool

func logDebug(format string, args ...interface{}) {
	if !debugEnabled {
		return
	}
	log.Printf("[DEBUG] "+format, args...)
}

// compressFlags carries the raw CLI values before size strings are parsed
// and validated into a CompressConfig.
type compressFlags struct {
	input        string
	avgChunkSize string
	minChunkSize string
	maxChunkSize string
	hashWindow   string
	hashLength   int
	codec        string
	level        int
	workers      int
	chunkStore   string
}

func (f *compressFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.input, "input", "i", "", "Input file (stdin when omitted)")
	cmd.Flags().StringVar(&f.avgChunkSize, "avg-chunk-size", "64KiB", "Target average chunk size")
	cmd.Flags().StringVar(&f.minChunkSize, "min-chunk-size", "16KiB", "Minimal chunk size")
	cmd.Flags().StringVar(&f.maxChunkSize, "max-chunk-size", "16MiB", "Maximal chunk size")
	cmd.Flags().StringVar(&f.hashWindow, "buzhash-window", "16B", "Rolling hash window size")
	cmd.Flags().IntVar(&f.hashLength, "hash-length", config.MaxHashLength, "Stored strong hash length in bytes")
	cmd.Flags().StringVar(&f.codec, "compression", "zstd", "Chunk compression type (zstd, lzma or none)")
	cmd.Flags().IntVar(&f.level, "compression-level", 6, "Chunk compression level (1-19)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Compression worker count (0 = all cores)")
	cmd.Flags().StringVar(&f.chunkStore, "chunk-store", "", "Directory of a chunk store receiving the payloads")
}

func (f *compressFlags) toConfig(output string, force bool) (*config.CompressConfig, error) {
	cfg := config.LoadCompressFromEnv()
	cfg.Input = f.input
	cfg.Output = output
	cfg.ForceCreate = force
	cfg.HashLength = f.hashLength
	cfg.Codec = f.codec
	cfg.Level = f.level
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.chunkStore != "" {
		cfg.ChunkStore = f.chunkStore
	}

	avg, err := humanize.ParseBytes(f.avgChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid avg-chunk-size: %w", err)
	}
	minSize, err := humanize.ParseBytes(f.minChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid min-chunk-size: %w", err)
	}
	maxSize, err := humanize.ParseBytes(f.maxChunkSize)
	if err != nil {
		return nil, fmt.Errorf("invalid max-chunk-size: %w", err)
	}
	window, err := humanize.ParseBytes(f.hashWindow)
	if err != nil {
		return nil, fmt.Errorf("invalid buzhash-window: %w", err)
	}

	cfg.FilterBits = config.FilterBitsFromAvg(uint32(avg))
	cfg.MinChunkSize = int(minSize)
	cfg.MaxChunkSize = int(maxSize)
	cfg.HashWindow = int(window)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// createOutput opens an output file honoring the force-create policy.
func createOutput(path string, force bool) (*os.File, error) {
	flags := os.O_RDWR | os.O_CREATE
	if force {
		flags |= os.O_TRUNC
	} else {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create output file %s: %w", path, err)
	}
	return f, nil
}

func runCompress(ctx context.Context, cfg *config.CompressConfig) error {
	start := time.Now()

	codec, err := compress.New(cfg.Codec, cfg.Level)
	if err != nil {
		return err
	}

	params, err := chunker.NewParams(cfg.FilterBits, cfg.MinChunkSize, cfg.MaxChunkSize, cfg.HashWindow, chunker.BuzHashSeed)
	if err != nil {
		return err
	}

	var source io.Reader
	if cfg.Input != "" {
		f, err := os.Open(cfg.Input)
		if err != nil {
			return fmt.Errorf("open input file %s: %w", cfg.Input, err)
		}
		defer f.Close()
		source = f
	} else {
		source = os.Stdin
	}

	var chunkStore *store.Store
	if cfg.ChunkStore != "" {
		chunkStore, err = store.Open(cfg.ChunkStore)
		if err != nil {
			return err
		}
		defer chunkStore.Close()
	}

	w, err := archive.NewWriter(cfg.HashLength)
	if err != nil {
		return err
	}
	defer w.Close()

	ck := chunker.New(params, source)

	var storedBytes uint64
	var reusedChunks int
	onUnique := func(cc pipeline.CompressedChunk) error {
		logDebug("[Compress] Chunk %d at offset %d, %s stored as %s",
			len(w.Descriptors()), cc.Offset,
			humanize.IBytes(uint64(cc.SourceSize)), humanize.IBytes(uint64(len(cc.Data))))
		if chunkStore != nil {
			cid, written, err := chunkStore.Put(cc.Hash, cc.Data)
			if err != nil {
				return err
			}
			if written == 0 {
				reusedChunks++
			}
			storedBytes += uint64(written)
			return w.AppendStored(cc.Hash, cc.SourceSize, len(cc.Data), cc.Compressed, cid)
		}
		storedBytes += uint64(len(cc.Data))
		return w.Append(cc.Hash, cc.SourceSize, cc.Data, cc.Compressed)
	}

	res, err := pipeline.Run(ctx, ck, codec, pipeline.Options{Workers: cfg.Workers, FileHash: true}, onUnique)
	if err != nil {
		return fmt.Errorf("compress %s: %w", cfg.Output, err)
	}

	descriptors := w.Descriptors()
	seenIdx := make(map[uint32]bool, len(descriptors))
	for _, d := range res.Order {
		desc := descriptors[d.UniqueIndex]
		metrics.ObserveChunk(int(desc.SourceSize), seenIdx[d.UniqueIndex])
		seenIdx[d.UniqueIndex] = true
	}
	metrics.ObserveStorage(int64(res.SourceSize), int64(storedBytes))
	metrics.ObserveScanTimes(ck.ScanTime(), ck.ReadTime())

	checksums := make([][]byte, len(descriptors))
	for i := range descriptors {
		checksums[i] = descriptors[i].Checksum
	}
	var merkleRoot []byte
	if len(checksums) > 0 {
		merkleRoot, err = merkle.Root(checksums)
		if err != nil {
			return err
		}
	}

	order := make([]uint32, len(res.Order))
	for i, d := range res.Order {
		order[i] = d.UniqueIndex
	}

	dict := &archive.Dictionary{
		Application:     "chunkkeeper " + appVersion,
		Codec:           cfg.Codec,
		SourceChecksum:  res.FileHash,
		SourceTotalSize: res.SourceSize,
		Chunker: archive.ChunkerConfig{
			FilterBits:   cfg.FilterBits,
			MinChunkSize: cfg.MinChunkSize,
			MaxChunkSize: cfg.MaxChunkSize,
			HashWindow:   cfg.HashWindow,
			HashLength:   cfg.HashLength,
			Seed:         chunker.BuzHashSeed,
		},
		MerkleRoot:   merkleRoot,
		RebuildOrder: order,
	}

	out, err := createOutput(cfg.Output, cfg.ForceCreate)
	if err != nil {
		return err
	}
	defer out.Close()

	if err := w.Finalize(out, dict); err != nil {
		return err
	}
	metrics.ObserveCompressRun(start)

	log.Printf("[Compress] %s: %d chunks (%d unique), %s source, %s stored (scan %v, read %v)",
		cfg.Output, len(res.Order), len(descriptors),
		humanize.IBytes(res.SourceSize), humanize.IBytes(storedBytes),
		ck.ScanTime().Round(time.Millisecond), ck.ReadTime().Round(time.Millisecond))
	if chunkStore != nil && reusedChunks > 0 {
		log.Printf("[Compress] %d chunks already present in store %s", reusedChunks, cfg.ChunkStore)
	}
	return nil
}

// openArchive opens a local archive file or a remote one behind an
// http(s) URL.
func openArchive(input string) (io.ReaderAt, func() error, error) {
	if strings.HasPrefix(input, "http://") || strings.HasPrefix(input, "https://") {
		return archive.NewHTTPReaderAt(input, nil), func() error { return nil }, nil
	}
	f, err := os.Open(input)
	if err != nil {
		return nil, nil, fmt.Errorf("open archive %s: %w", input, err)
	}
	return f, f.Close, nil
}

func runUnpack(cfg *config.UnpackConfig) error {
	ra, closeFn, err := openArchive(cfg.Input)
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := archive.NewReader(ra)
	if err != nil {
		return err
	}

	var chunkStore *store.Store
	if cfg.ChunkStore != "" {
		chunkStore, err = store.Open(cfg.ChunkStore)
		if err != nil {
			return err
		}
		defer chunkStore.Close()
	}

	out, err := createOutput(cfg.Output, cfg.ForceCreate)
	if err != nil {
		return err
	}
	defer out.Close()

	stats, err := clone.Clone(r, out, clone.Options{Seeds: cfg.Seeds, Store: chunkStore})
	if err != nil {
		return fmt.Errorf("unpack %s: %w", cfg.Input, err)
	}

	log.Printf("[Unpack] %s: %s from %d seed chunks, %s from %d archive chunks",
		cfg.Output,
		humanize.IBytes(stats.SeedBytes), stats.ChunksFromSeeds,
		humanize.IBytes(stats.ArchiveBytes), stats.ChunksFromArchive)
	return nil
}

func runInfo(input string) error {
	ra, closeFn, err := openArchive(input)
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := archive.NewReader(ra)
	if err != nil {
		return err
	}
	dict := r.Dictionary()

	fmt.Printf("Archive: %s\n", input)
	fmt.Printf("  Built by:         %s\n", dict.Application)
	fmt.Printf("  Compression:      %s\n", dict.Codec)
	fmt.Printf("  Source size:      %s\n", humanize.IBytes(dict.SourceTotalSize))
	fmt.Printf("  Source checksum:  %s\n", hex.EncodeToString(dict.SourceChecksum))
	fmt.Printf("  Chunks:           %d (%d unique)\n", len(dict.RebuildOrder), len(dict.Descriptors))
	fmt.Printf("  Stored size:      %s\n", humanize.IBytes(dict.StoredSize()))
	fmt.Printf("  Chunker:          filter bits %d, min %s, max %s, window %dB, hash length %d\n",
		dict.Chunker.FilterBits,
		humanize.IBytes(uint64(dict.Chunker.MinChunkSize)),
		humanize.IBytes(uint64(dict.Chunker.MaxChunkSize)),
		dict.Chunker.HashWindow,
		dict.Chunker.HashLength)
	if len(dict.MerkleRoot) > 0 {
		fmt.Printf("  Merkle root:      %s\n", hex.EncodeToString(dict.MerkleRoot))
	}
	return nil
}

func runVerify(input, chunkStoreDir string) error {
	ra, closeFn, err := openArchive(input)
	if err != nil {
		return err
	}
	defer closeFn()

	r, err := archive.NewReader(ra)
	if err != nil {
		return err
	}
	dict := r.Dictionary()

	var chunkStore *store.Store
	if chunkStoreDir != "" {
		chunkStore, err = store.Open(chunkStoreDir)
		if err != nil {
			return err
		}
		defer chunkStore.Close()
	}

	checksums := make([][]byte, len(dict.Descriptors))
	for i, desc := range dict.Descriptors {
		checksums[i] = desc.Checksum
		var err error
		if desc.CID != "" {
			if chunkStore == nil {
				return fmt.Errorf("archive references chunk store entries; pass --chunk-store")
			}
			var stored []byte
			stored, err = chunkStore.Get(desc.CID)
			if err == nil {
				_, err = r.ExpandStored(i, stored)
			}
		} else {
			_, err = r.ChunkData(i)
		}
		if err != nil {
			return fmt.Errorf("chunk %d failed verification: %w", i, err)
		}
	}

	if len(dict.MerkleRoot) > 0 {
		ok, err := merkle.VerifyRoot(checksums, dict.MerkleRoot)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("merkle root mismatch")
		}
	}

	log.Printf("[Verify] %s: %d chunks OK", input, len(dict.Descriptors))
	return nil
}

// runWatch recompresses the input whenever it changes. Events are
// debounced because editors and copy tools fire bursts of writes for a
// single logical change.
func runWatch(ctx context.Context, cfg *config.CompressConfig, debounce time.Duration) error {
	if cfg.Input == "" {
		return fmt.Errorf("watch requires an input file")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	// Watch the directory: many tools replace files via rename, which
	// drops a watch set on the file itself.
	dir := filepath.Dir(cfg.Input)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	target, err := filepath.Abs(cfg.Input)
	if err != nil {
		return err
	}

	compressOnce := func() {
		runCfg := *cfg
		runCfg.ForceCreate = true
		if err := runCompress(ctx, &runCfg); err != nil {
			log.Printf("[Watch] Compression failed: %v", err)
		}
	}

	log.Printf("[Watch] Watching %s (debounce %v)", cfg.Input, debounce)
	compressOnce()

	var timer *time.Timer
	pending := make(chan struct{}, 1)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(event.Name)
			if err != nil || abs != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			logDebug("[Watch] Event %s on %s", event.Op, event.Name)
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watch] Watcher error: %v", err)
		case <-pending:
			compressOnce()
		}
	}
}

func main() {
	var (
		forceCreate bool
		metricsAddr string
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := &cobra.Command{
		Use:   "chunkkeeper",
		Short: "ChunkKeeper - content-defined chunking dedup archiver",
		Long: `ChunkKeeper splits a byte stream into content-defined chunks, deduplicates
them by strong hash, compresses them in parallel and writes a self-describing
archive. Archives can be unpacked from local files or over HTTP range reads,
reusing chunks from local seed files.

Example:
  chunkkeeper compress -i disk.img disk.ckar
  chunkkeeper unpack disk.ckar restored.img --seed old-disk.img`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if metricsAddr != "" {
				go func() {
					if err := metrics.Serve(ctx, metricsAddr, nil); err != nil {
						log.Printf("[Metrics] Server failed: %v", err)
					}
				}()
			}
		},
	}
	rootCmd.PersistentFlags().BoolVar(&debugEnabled, "debug", false, "Enable verbose debug logging")
	rootCmd.PersistentFlags().BoolVarP(&forceCreate, "force-create", "f", false, "Overwrite output files if they exist")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	var cFlags compressFlags
	compressCmd := &cobra.Command{
		Use:   "compress [flags] OUTPUT",
		Short: "Compress a file or stream into a chunk archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cFlags.toConfig(args[0], forceCreate)
			if err != nil {
				return err
			}
			return runCompress(ctx, cfg)
		},
	}
	cFlags.register(compressCmd)

	var seeds []string
	var unpackStore string
	unpackCmd := &cobra.Command{
		Use:   "unpack [flags] INPUT OUTPUT",
		Short: "Rebuild a file from a local or remote archive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &config.UnpackConfig{
				Input:       args[0],
				Output:      args[1],
				ChunkStore:  unpackStore,
				Seeds:       seeds,
				ForceCreate: forceCreate,
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runUnpack(cfg)
		},
	}
	unpackCmd.Flags().StringArrayVar(&seeds, "seed", nil, "File(s) to scan for reusable chunks")
	unpackCmd.Flags().StringVar(&unpackStore, "chunk-store", "", "Chunk store directory for store-backed archives")

	infoCmd := &cobra.Command{
		Use:   "info INPUT",
		Short: "Print archive header information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInfo(args[0])
		},
	}

	var verifyStore string
	verifyCmd := &cobra.Command{
		Use:   "verify INPUT",
		Short: "Verify every chunk and the Merkle root of an archive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0], verifyStore)
		},
	}
	verifyCmd.Flags().StringVar(&verifyStore, "chunk-store", "", "Chunk store directory for store-backed archives")

	var wFlags compressFlags
	var debounce time.Duration
	watchCmd := &cobra.Command{
		Use:   "watch [flags] OUTPUT",
		Short: "Recompress the input whenever it changes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := wFlags.toConfig(args[0], true)
			if err != nil {
				return err
			}
			return runWatch(ctx, cfg, debounce)
		},
	}
	wFlags.register(watchCmd)
	watchCmd.Flags().DurationVar(&debounce, "debounce", 500*time.Millisecond, "Quiet period before recompressing")

	rootCmd.AddCommand(compressCmd, unpackCmd, infoCmd, verifyCmd, watchCmd)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}
