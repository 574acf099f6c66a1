package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"

	"github.com/rankdesk/rankdesk"
	"github.com/rankdesk/rankdesk/collection"
	"github.com/rankdesk/rankdesk/domain"
	"github.com/spf13/cobra"
)

// managePath is the console screen that owns the processor rankings.
const managePath = "/cpu-manage"

var errLoginRequired = errors.New("login required, run `rankdesk login` first")

// processorFields binds the editable processor fields to flags.
type processorFields struct {
	processor, rating, antutu, geekbench, cores, clock, gpu string
}

func (f *processorFields) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.processor, "processor", "", "Chipset name")
	cmd.Flags().StringVar(&f.rating, "rating", "", "Ranking grade")
	cmd.Flags().StringVar(&f.antutu, "antutu", "", "AnTuTu v10 score")
	cmd.Flags().StringVar(&f.geekbench, "geekbench", "", "Geekbench 6 score")
	cmd.Flags().StringVar(&f.cores, "cores", "", "Core count or layout")
	cmd.Flags().StringVar(&f.clock, "clock", "", "Peak clock speed")
	cmd.Flags().StringVar(&f.gpu, "gpu", "", "Integrated GPU")
}

// apply copies the flags that were set on cmd into processor.
func (f *processorFields) apply(cmd *cobra.Command, processor *domain.Processor) {
	for flag, target := range map[string]*string{
		"processor": &processor.Processor,
		"rating":    &processor.Rating,
		"antutu":    &processor.Antutu10,
		"geekbench": &processor.Geekbench6,
		"cores":     &processor.Cores,
		"clock":     &processor.Clock,
		"gpu":       &processor.GPU,
	} {
		if cmd.Flags().Changed(flag) {
			*target = cmd.Flag(flag).Value.String()
		}
	}
}

// withProcessors opens the console, checks the session can reach the rankings screen,
// mounts the synchronizer and runs fn against it.
func withProcessors(cmd *cobra.Command, opts *globalOptions, fn func(*rankdesk.Console, *collection.Synchronizer[domain.Processor]) error) error {
	console, err := openConsole(cmd, opts)
	if err != nil {
		return err
	}
	defer console.Close()

	if !console.Guard().Allowed(managePath) {
		return errLoginRequired
	}

	processors, err := console.Processors()
	if err != nil {
		return err
	}
	defer processors.Close()

	if err := processors.Mount(rankdesk.NewRequestContext(cmd.Context())); err != nil {
		return err
	}
	return fn(console, processors)
}

func newProcessorsCommand(opts *globalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "processors",
		Aliases: []string{"cpu"},
		Short:   "List and edit the processor rankings",
	}
	cmd.AddCommand(
		newProcessorsListCommand(opts),
		newProcessorsAddCommand(opts),
		newProcessorsUpdateCommand(opts),
		newProcessorsDeleteCommand(opts),
	)
	return cmd
}

func newProcessorsListCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print the processor rankings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessors(cmd, opts, func(_ *rankdesk.Console, processors *collection.Synchronizer[domain.Processor]) error {
				return printProcessors(cmd.OutOrStdout(), processors.Items())
			})
		},
	}
}

func newProcessorsAddCommand(opts *globalOptions) *cobra.Command {
	fields := &processorFields{}
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a processor",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProcessors(cmd, opts, func(_ *rankdesk.Console, processors *collection.Synchronizer[domain.Processor]) error {
				var processor domain.Processor
				fields.apply(cmd, &processor)
				if err := processors.Add(rankdesk.NewRequestContext(cmd.Context()), processor); err != nil {
					return err
				}
				return printProcessors(cmd.OutOrStdout(), processors.Items())
			})
		},
	}
	fields.register(cmd)
	cmd.MarkFlagRequired("processor")
	return cmd
}

func newProcessorsUpdateCommand(opts *globalOptions) *cobra.Command {
	fields := &processorFields{}
	cmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Change fields of a processor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid processor id %q", args[0])
			}
			return withProcessors(cmd, opts, func(_ *rankdesk.Console, processors *collection.Synchronizer[domain.Processor]) error {
				var current *domain.Processor
				for _, processor := range processors.Items() {
					if key, ok := processor.Key(); ok && key == id {
						current = &processor
						break
					}
				}
				if current == nil {
					return fmt.Errorf("processor %d: %w", id, domain.ErrNotFound)
				}

				fields.apply(cmd, current)
				if err := processors.Update(rankdesk.NewRequestContext(cmd.Context()), *current); err != nil {
					return err
				}
				return printProcessors(cmd.OutOrStdout(), processors.Items())
			})
		},
	}
	fields.register(cmd)
	return cmd
}

func newProcessorsDeleteCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Delete a processor",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid processor id %q", args[0])
			}
			return withProcessors(cmd, opts, func(_ *rankdesk.Console, processors *collection.Synchronizer[domain.Processor]) error {
				return processors.Remove(rankdesk.NewRequestContext(cmd.Context()), id)
			})
		},
	}
}

func printProcessors(w io.Writer, processors []domain.Processor) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPROCESSOR\tRATING\tANTUTU 10\tGEEKBENCH 6\tCORES\tCLOCK\tGPU\tUPDATED")
	for _, p := range processors {
		id := "-"
		if key, ok := p.Key(); ok {
			id = strconv.FormatInt(key, 10)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			id, p.Processor, p.Rating, p.Antutu10, p.Geekbench6, p.Cores, p.Clock, p.GPU, p.UpdatedAt)
	}
	return tw.Flush()
}
