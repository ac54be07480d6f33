package config

import "github.com/spf13/pflag"

// BindFlags registers flags that write straight into c. Call it after
// LoadConfig so the current values become the flag defaults.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&c.ServerURL, "server", "a", c.ServerURL, "server base URL")
	fs.DurationVarP(&c.RequestTimeout, "timeout", "t", c.RequestTimeout, "per-request timeout")
	fs.StringVar(&c.DataDir, "data-dir", c.DataDir, "directory for the local guard cache")
	fs.StringVar(&c.CacheDSN, "cache", c.CacheDSN, "guard cache SQLite DSN (overrides --data-dir)")
	fs.IntVar(&c.ExportPageSize, "page-size", c.ExportPageSize, "page size used by export")
	fs.StringVarP(&c.Username, "user", "u", c.Username, "account name")
	fs.StringVarP(&c.LogLevel, "log-level", "l", c.LogLevel, "log level")
}

// ApplyFlags copies every flag changed in fs that BindFlags knows about
// onto c. It lets flags parsed before the config file was read still win.
func (c *Config) ApplyFlags(fs *pflag.FlagSet) error {
	own := pflag.NewFlagSet("config", pflag.ContinueOnError)
	c.BindFlags(own)

	var err error
	fs.Visit(func(f *pflag.Flag) {
		if err != nil || own.Lookup(f.Name) == nil {
			return
		}
		err = own.Set(f.Name, f.Value.String())
	})
	return err
}
