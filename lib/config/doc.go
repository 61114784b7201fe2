// Package config loads go-oscar settings with viper.
//
// Settings come from, in increasing precedence: built-in defaults, the YAML
// file at $HOME/.go-oscar/config.yaml (written with the defaults on first
// run), and GO_OSCAR_* environment variables, where GO_OSCAR_OSCAR_SEND_TO
// sets oscar.send_to. CurrentConfig resolves them into a Config value. The
// protocol packages never read viper themselves.
package config
