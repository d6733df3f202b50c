package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/molplace/pkg/cache"
	"github.com/matzehuels/molplace/pkg/topology"
)

const (
	topologyFormatDOT = "dot"
	topologyFormatSVG = "svg"
)

// topologyCommand creates the topology command, which draws the bond graph
// of a molecule topology string.
func (c *CLI) topologyCommand() *cobra.Command {
	var (
		output  string
		format  string
		colors  []string
		noCache bool
	)

	cmd := &cobra.Command{
		Use:   "topology [topology]",
		Short: "Draw the bond graph of a topology string",
		Long: `Draw the bond graph of a topology string such as "HEAD-LINK(SIDE)-[TAIL]3".

Backbone particles are drawn bold. The output is Graphviz DOT or SVG;
rendered SVGs are cached locally.`,
		Example: `  molplace topology "NC3-PO4-GL1(C1A-C2A)-GL2(C1B-C2B)" -o lipid.svg`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "" && format == "" && strings.HasSuffix(output, "."+topologyFormatDOT) {
				format = topologyFormatDOT
			}
			if format == "" {
				format = topologyFormatSVG
			}
			if format != topologyFormatDOT && format != topologyFormatSVG {
				return fmt.Errorf("invalid format: %s (must be 'dot' or 'svg')", format)
			}
			palette, err := parseColors(colors)
			if err != nil {
				return err
			}
			return c.runTopology(cmd.Context(), args[0], format, palette, output, noCache)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "output file (stdout if empty)")
	cmd.Flags().StringVarP(&format, "format", "f", "", "output format: svg (default), dot")
	cmd.Flags().StringSliceVar(&colors, "color", nil, "particle fill color as NAME=COLOR (repeatable)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "disable caching")

	return cmd
}

func (c *CLI) runTopology(ctx context.Context, src, format string, colors map[string]string, output string, noCache bool) error {
	topo, err := topology.Parse(src)
	if err != nil {
		return err
	}
	c.Logger.Debug("parsed topology", "particles", topo.Len(), "bonds", len(topo.Bonds))

	var data []byte
	if format == topologyFormatDOT {
		data = []byte(topo.ToDOT(colors))
	} else if data, err = c.renderTopology(ctx, topo, colors, noCache); err != nil {
		return err
	}

	if output == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	return writeArtifact(output, data)
}

// renderTopology renders topo to SVG, going through the local cache.
func (c *CLI) renderTopology(ctx context.Context, topo *topology.Topology, colors map[string]string, noCache bool) ([]byte, error) {
	cc, err := c.newCache(ctx, backendOpts{noCache: noCache})
	if err != nil {
		return nil, err
	}
	defer cc.Close()

	palette, err := cache.HashJSON(colors)
	if err != nil {
		return nil, err
	}
	key := cache.NewDefaultKeyer().TopologyKey(topo.String()+"|"+palette, topologyFormatSVG)
	if data, hit, err := cc.Get(ctx, key); err == nil && hit {
		c.Logger.Debug("topology cache hit", "key", key)
		return data, nil
	}

	data, err := topo.RenderSVG(ctx, colors)
	if err != nil {
		return nil, err
	}
	if err := cc.Set(ctx, key, data, cache.TTLTopology); err != nil {
		c.Logger.Warn("cache write failed", "err", err)
	}
	return data, nil
}

// parseColors parses NAME=COLOR pairs.
func parseColors(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	colors := make(map[string]string, len(pairs))
	for _, p := range pairs {
		name, color, ok := strings.Cut(p, "=")
		if !ok || name == "" || color == "" {
			return nil, fmt.Errorf("invalid color %q (want NAME=COLOR)", p)
		}
		colors[name] = color
	}
	return colors, nil
}
