package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/CTAG07/kgram/pkg/markov"
	"github.com/natefinch/atomic"
)

type command struct {
	usage string
	run   func(ctx context.Context, app *App, args []string) error
}

var commands = map[string]command{
	"train":       {"train a model from text and store it under a name", cmdTrain},
	"generate":    {"generate text from a stored model", cmdGenerate},
	"repair":      {"replace every " + string(markov.Unknown) + " in a text with its most likely character", cmdRepair},
	"most-likely": {"print the most likely character for the centre of a 2k+1 context", cmdMostLikely},
	"query":       {"print frequencies and probabilities for a k-gram", cmdQuery},
	"stats":       {"print summary statistics for a stored model", cmdStats},
	"list":        {"list stored models", cmdList},
	"remove":      {"delete a stored model", cmdRemove},
	"export":      {"write a stored model as JSON", cmdExport},
	"import":      {"store a model from a JSON export", cmdImport},
	"serve":       {"run the HTTP API", cmdServe},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "Usage: kgram [-config path] <command> [flags]\n\nCommands:\n")
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, name := range slices.Sorted(maps.Keys(commands)) {
		fmt.Fprintf(tw, "  %s\t%s\n", name, commands[name].usage)
	}
	fmt.Fprintf(tw, "  version\tprint build information\n")
	_ = tw.Flush()
}

func newFlagSet(app *App, name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(app.errOut)
	return fs
}

func requireName(name string) error {
	if name == "" {
		return errors.New("-name is required")
	}
	return nil
}

// readInput returns text if set, otherwise the contents of file, where "" or
// "-" means the app's input stream.
func readInput(app *App, text, file string) (string, error) {
	if text != "" {
		return text, nil
	}
	var data []byte
	var err error
	if file == "" || file == "-" {
		data, err = io.ReadAll(app.in)
	} else {
		data, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read input: %w", err)
	}
	return string(data), nil
}

func cmdTrain(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "train")
	name := fs.String("name", "", "name to store the model under")
	order := fs.Int("order", app.config.Get().Model.DefaultOrder, "k-gram order")
	text := fs.String("text", "", "training text (overrides -file)")
	file := fs.String("file", "-", "training text file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	input, err := readInput(app, *text, *file)
	if err != nil {
		return err
	}
	model, err := markov.New(input, *order)
	if err != nil {
		return err
	}
	info, err := app.store.SaveModel(ctx, *name, model)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "trained %q: order %d, %d characters, alphabet of %d\n",
		info.Name, info.Order, info.Length, len(model.Alphabet()))
	return err
}

func cmdGenerate(ctx context.Context, app *App, args []string) error {
	limits := app.config.Get().Model
	fs := newFlagSet(app, "generate")
	name := fs.String("name", "", "model name")
	start := fs.String("start", "", "seed k-gram, defaults to the model's most frequent one")
	length := fs.Int("length", limits.DefaultLength, "number of characters to generate")
	rngSeed := fs.Uint64("rng-seed", 0, "random seed, 0 for a fresh one")
	temperature := fs.Float64("temperature", 1.0, "sampling temperature, 0 for greedy")
	stream := fs.Bool("stream", false, "write characters as they are generated")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}
	if *length > limits.MaxLength {
		return fmt.Errorf("length %d exceeds the maximum of %d", *length, limits.MaxLength)
	}

	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	seed := *start
	if seed == "" {
		seed = model.MostFrequent()
	}
	opts := []markov.GenerateOption{markov.WithTemperature(*temperature), markov.WithLogger(app.logger)}

	if !*stream {
		text, err := model.Generate(newRand(*rngSeed), seed, *length, opts...)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(app.out, text)
		return err
	}

	runes, err := model.GenerateStream(ctx, newRand(*rngSeed), seed, *length, opts...)
	if err != nil {
		return err
	}
	for c := range runes {
		if _, err = fmt.Fprint(app.out, string(c)); err != nil {
			return err
		}
	}
	if err = ctx.Err(); err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out)
	return err
}

func cmdRepair(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "repair")
	name := fs.String("name", "", "model name")
	text := fs.String("text", "", "corrupted text (overrides -file)")
	file := fs.String("file", "-", "corrupted text file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	input, err := readInput(app, *text, *file)
	if err != nil {
		return err
	}
	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	repaired, err := model.ReplaceUnknown(input)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(app.out, repaired)
	return err
}

func cmdMostLikely(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "most-likely")
	name := fs.String("name", "", "model name")
	window := fs.String("context", "", "2k+1 characters, the centre one is replaced")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	c, err := model.MostLikely(*window)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "%q\n", c)
	return err
}

func cmdQuery(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "query")
	name := fs.String("name", "", "model name")
	kgram := fs.String("kgram", "", "k-gram to look up")
	char := fs.String("char", "", "next character, omit to print the full distribution")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	frequency, err := model.Frequency(*kgram)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if *char == "" {
		distribution, err := model.Distribution(*kgram)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "frequency\t%d\n", frequency)
		for i, c := range model.Alphabet() {
			if distribution[i] > 0 {
				fmt.Fprintf(tw, "%q\t%.6f\n", c, distribution[i])
			}
		}
		return nil
	}

	next := []rune(*char)
	if len(next) != 1 {
		return errors.New("-char must be a single character")
	}
	transitions, err := model.TransitionFrequency(*kgram, next[0])
	if err != nil {
		return err
	}
	probability, err := model.Probability(*kgram, next[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(tw, "frequency\t%d\n", frequency)
	fmt.Fprintf(tw, "transitions\t%d\n", transitions)
	fmt.Fprintf(tw, "probability\t%.6f\n", probability)
	return nil
}

func cmdStats(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "stats")
	name := fs.String("name", "", "model name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	info, err := app.store.ModelInfo(ctx, *name)
	if err != nil {
		return err
	}
	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(app.out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(StatsResponse{Model: info, Stats: model.Stats()})
}

func cmdList(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "list")
	if err := fs.Parse(args); err != nil {
		return err
	}

	infos, err := app.store.ModelInfos(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(app.out, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "NAME\tORDER\tLENGTH\n")
	for _, name := range slices.Sorted(maps.Keys(infos)) {
		info := infos[name]
		fmt.Fprintf(tw, "%s\t%d\t%d\n", info.Name, info.Order, info.Length)
	}
	return tw.Flush()
}

func cmdRemove(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "remove")
	name := fs.String("name", "", "model name")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	if err := app.store.RemoveModel(ctx, *name); err != nil {
		return err
	}
	_, err := fmt.Fprintf(app.out, "removed %q\n", *name)
	return err
}

func cmdExport(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "export")
	name := fs.String("name", "", "model name")
	out := fs.String("out", "-", "output file, - for stdout")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	model, err := app.store.LoadModel(ctx, *name)
	if err != nil {
		return err
	}
	if *out == "-" {
		return model.Export(app.out)
	}

	var buf bytes.Buffer
	if err = model.Export(&buf); err != nil {
		return err
	}
	if err = atomic.WriteFile(*out, &buf); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	app.logger.Info("Exported model", "name", *name, "path", *out)
	return nil
}

func cmdImport(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "import")
	name := fs.String("name", "", "name to store the model under")
	file := fs.String("file", "-", "JSON export file, - for stdin")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireName(*name); err != nil {
		return err
	}

	r := app.in
	if *file != "-" {
		f, err := os.Open(*file)
		if err != nil {
			return fmt.Errorf("failed to open import file: %w", err)
		}
		defer f.Close()
		r = f
	}
	model, err := markov.Import(r)
	if err != nil {
		return err
	}
	info, err := app.store.SaveModel(ctx, *name, model)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(app.out, "imported %q: order %d, %d characters\n", info.Name, info.Order, info.Length)
	return err
}

func cmdServe(ctx context.Context, app *App, args []string) error {
	fs := newFlagSet(app, "serve")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return serve(ctx, app)
}
