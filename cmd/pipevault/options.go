package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

const envPrefix = "PIPEVAULT"

// opt is one command-line option that can also be set from the environment
// as PIPEVAULT_<FLAG_NAME>.
type opt struct {
	dest  any
	flag  string
	dflt  any
	usage string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// bindOptions registers opts as persistent flags of cmd. The environment is
// read now and becomes the value unless the flag is given explicitly.
func bindOptions(v *viper.Viper, cmd *cobra.Command, opts []opt) {
	fs := cmd.PersistentFlags()
	for _, o := range opts {
		switch dest := o.dest.(type) {
		case *string:
			fs.StringVar(dest, o.flag, o.dflt.(string), o.usage)
			mustBind(v, cmd, o.flag)
			*dest = v.GetString(o.flag)
		case *int:
			fs.IntVar(dest, o.flag, o.dflt.(int), o.usage)
			mustBind(v, cmd, o.flag)
			*dest = v.GetInt(o.flag)
		case *bool:
			fs.BoolVar(dest, o.flag, o.dflt.(bool), o.usage)
			mustBind(v, cmd, o.flag)
			*dest = v.GetBool(o.flag)
		case *time.Duration:
			fs.DurationVar(dest, o.flag, o.dflt.(time.Duration), o.usage)
			mustBind(v, cmd, o.flag)
			*dest = v.GetDuration(o.flag)
		default:
			panic(fmt.Sprintf("option %s: unsupported destination %T", o.flag, o.dest))
		}
	}
}

func mustBind(v *viper.Viper, cmd *cobra.Command, flag string) {
	if err := v.BindPFlag(flag, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
