// Package main provides the Loom translation CLI.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/loom-ml/loom/internal/backend/cpu"
	"github.com/loom-ml/loom/internal/config"
	"github.com/loom-ml/loom/internal/data"
	"github.com/loom-ml/loom/internal/generate"
	"github.com/loom-ml/loom/internal/nn"
	"github.com/loom-ml/loom/internal/tokenizer"
)

const version = "v0.1.0-dev"

func main() {
	if len(os.Args) < 2 {
		usage()
		return
	}

	var err error
	switch os.Args[1] {
	case "version":
		fmt.Printf("Loom %s\n", version)
	case "translate":
		err = runTranslate(os.Args[2:])
	case "train-tokenizer":
		err = runTrainTokenizer(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "loom: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Println("Loom - Transformer Translation in Go")
	fmt.Printf("Version: %s\n\n", version)
	fmt.Println("Commands:")
	fmt.Println("  version                 Show version")
	fmt.Println("  translate               Translate text with the latest checkpoint")
	fmt.Println("  train-tokenizer         Train a BPE tokenizer on a corpus")
}

func runTranslate(args []string) error {
	fs := flag.NewFlagSet("translate", flag.ExitOnError)
	configPath := fs.String("config", "loom.yaml", "path to the YAML configuration")
	text := fs.String("text", "", "source text; reads stdin lines when empty")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	srcTok, tgtTok, err := buildTokenizers(cfg.Tokenizer)
	if err != nil {
		return err
	}

	backend := cpu.New()
	model := nn.NewTransformer(nn.Config{
		SrcVocabSize: srcTok.VocabSize(),
		TgtVocabSize: tgtTok.VocabSize(),
		SrcSeqLen:    cfg.Model.SrcSeqLen,
		TgtSeqLen:    cfg.Model.TgtSeqLen,
		DModel:       cfg.Model.DModel,
		Layers:       cfg.Model.Layers,
		Heads:        cfg.Model.Heads,
		DFF:          cfg.Model.DFF,
		Dropout:      float32(cfg.Model.Dropout),
	}, backend)
	model.SetTraining(false)

	path, epoch, err := nn.LatestCheckpoint(cfg.CheckpointDir)
	if err != nil {
		return err
	}
	if _, err := nn.LoadCheckpoint(path, model, nil); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "loaded checkpoint %s (epoch %d)\n", path, epoch)

	decoder := generate.NewGreedyDecoder(model, tgtTok.BosToken(), tgtTok.EosToken(), cfg.Decode.MaxLen, backend)
	var sampler *generate.Sampler
	if cfg.Decode.Temperature > 0 {
		sampler = generate.NewSampler(generate.SamplingConfig{
			Temperature: float32(cfg.Decode.Temperature),
			TopK:        cfg.Decode.TopK,
			TopP:        float32(cfg.Decode.TopP),
			Seed:        cfg.Decode.Seed,
		})
	}

	translate := func(line string) error {
		out, err := translateLine(line, cfg, srcTok, tgtTok, decoder, sampler, backend)
		if err != nil {
			return err
		}
		fmt.Println(out)
		return nil
	}

	if *text != "" {
		return translate(*text)
	}

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if err := translate(line); err != nil {
			return err
		}
	}
	return scanner.Err()
}

func translateLine(
	line string,
	cfg config.Config,
	srcTok, tgtTok tokenizer.Tokenizer,
	decoder *generate.GreedyDecoder[*cpu.CPUBackend],
	sampler *generate.Sampler,
	backend *cpu.CPUBackend,
) (string, error) {
	ids, err := srcTok.Encode(line)
	if err != nil {
		return "", err
	}

	specials := data.Specials{
		Pad: srcTok.PadToken(),
		Sos: srcTok.BosToken(),
		Eos: srcTok.EosToken(),
	}
	src, srcMask, err := data.NewSourceInput(ids, cfg.Model.SrcSeqLen, specials, backend)
	if err != nil {
		return "", err
	}

	var out []int32
	if sampler != nil {
		out = decoder.DecodeWithSampler(src, srcMask, sampler)
	} else {
		out = decoder.Decode(src, srcMask)
	}
	return tgtTok.Decode(out)
}

func buildTokenizers(cfg config.TokenizerConfig) (src, tgt tokenizer.Tokenizer, err error) {
	if cfg.Kind == "bpe" {
		src, err = tokenizer.LoadBPE(cfg.SrcPath)
		if err != nil {
			return nil, nil, err
		}
		tgt, err = tokenizer.LoadBPE(cfg.TgtPath)
		if err != nil {
			return nil, nil, err
		}
		return src, tgt, nil
	}

	// tiktoken encodings are language-agnostic; both sides share one.
	tik, err := tokenizer.NewTikToken(cfg.Kind)
	if err != nil {
		return nil, nil, err
	}
	return tik, tik, nil
}

func runTrainTokenizer(args []string) error {
	fs := flag.NewFlagSet("train-tokenizer", flag.ExitOnError)
	out := fs.String("out", "tokenizer.json", "output path for the trained tokenizer")
	vocabSize := fs.Int("vocab-size", 8000, "target vocabulary size")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("train-tokenizer requires at least one corpus file")
	}

	bpe, err := tokenizer.TrainBPE(fs.Args(), *vocabSize)
	if err != nil {
		return err
	}
	if err := bpe.Save(*out); err != nil {
		return err
	}
	fmt.Printf("trained tokenizer with %d tokens -> %s\n", bpe.VocabSize(), *out)
	return nil
}
