// Command wiregen generates protocol marshalling code from a YAML shape
// schema. One invocation handles one protocol; the output directory receives
// one Go source file per logical module (serializers, deserializers).
package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	wiregen "github.com/wiregen/wiregen"
	"github.com/wiregen/wiregen/model"
	"github.com/wiregen/wiregen/protocol/awsjson"
	"github.com/wiregen/wiregen/protocol/query"
	"github.com/wiregen/wiregen/protocol/restjson"
	"github.com/wiregen/wiregen/protocol/restxml"
	"github.com/wiregen/wiregen/protocol/rpcbin"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "wiregen",
		Short:         "schema-driven wire protocol code generator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newGenerateCmd())
	return root
}

func newGenerateCmd() *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("WIREGEN")
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "generate serializers and parsers for one protocol",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(v)
		},
	}
	cmd.Flags().StringP("schema", "s", "", "path to the YAML shape schema")
	cmd.Flags().StringP("protocol", "p", "", "protocol name (awsjson1.0, awsjson1.1, restjson, restxml, query, rpcbin); defaults to the schema's service protocol")
	cmd.Flags().StringP("out", "o", ".", "output directory")
	cmd.Flags().String("types-import", "", "import path of the generated types package")
	cmd.Flags().BoolP("verbose", "v", false, "debug logging")
	for _, name := range []string{"schema", "protocol", "out", "types-import", "verbose"} {
		if err := v.BindPFlag(name, cmd.Flags().Lookup(name)); err != nil {
			panic(err)
		}
	}
	_ = cmd.MarkFlagRequired("schema")
	return cmd
}

func runGenerate(v *viper.Viper) error {
	log, err := newLogger(v.GetBool("verbose"))
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	data, err := os.ReadFile(v.GetString("schema"))
	if err != nil {
		return err
	}
	m, err := model.Load(data)
	if err != nil {
		return err
	}

	protoName := v.GetString("protocol")
	if protoName == "" {
		if svc := m.Service(); svc != nil {
			protoName = svc.Protocol
		}
	}
	proto, err := protocolFor(protoName)
	if err != nil {
		return err
	}

	symbols := wiregen.NewDefaultSymbols(m)
	if ti := v.GetString("types-import"); ti != "" {
		symbols.Types = ti
	}

	arts, genErr := wiregen.Generate(m, proto, wiregen.WithLogger(log), wiregen.WithSymbols(symbols))

	outDir := v.GetString("out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return err
	}
	modules := make([]string, 0, len(arts.Modules))
	for name := range arts.Modules {
		modules = append(modules, name)
	}
	sort.Strings(modules)
	for _, name := range modules {
		src, err := arts.Render(name)
		if err != nil {
			return err
		}
		path := filepath.Join(outDir, name+".go")
		if err := os.WriteFile(path, src, 0o644); err != nil {
			return err
		}
		log.Info("wrote module", zap.String("path", path), zap.Int("bytes", len(src)))
	}

	if genErr != nil {
		if iss, ok := wiregen.AsIssues(genErr); ok {
			for _, it := range iss {
				log.Error("generation issue",
					zap.String("shape", it.Shape),
					zap.String("protocol", it.Protocol),
					zap.String("code", it.Code),
					zap.String("message", it.Message))
			}
		}
		return genErr
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	if verbose {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Encoding = "console"
	cfg.DisableStacktrace = true
	return cfg.Build()
}

func protocolFor(name string) (wiregen.Protocol, error) {
	switch name {
	case "awsjson1.0":
		return awsjson.New("1.0"), nil
	case "awsjson", "awsjson1.1":
		return awsjson.New("1.1"), nil
	case "restjson":
		return restjson.New(), nil
	case "restxml":
		return restxml.New(), nil
	case "query":
		return query.New(), nil
	case "rpcbin":
		return rpcbin.New(), nil
	case "":
		return nil, fmt.Errorf("no protocol given and the schema names none")
	default:
		return nil, fmt.Errorf("unknown protocol %q", name)
	}
}
