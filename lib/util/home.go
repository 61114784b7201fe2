// Package util holds small filesystem helpers.
package util

import (
	"os"

	"github.com/go-i2p/logger"
)

var log = logger.GetGoI2PLogger()

// UserHome returns the current user's home directory, falling back to
// $HOME, then %USERPROFILE%, then the working directory.
func UserHome() string {
	homeDir, err := os.UserHomeDir()
	if err == nil {
		return homeDir
	}
	for _, env := range []string{"HOME", "USERPROFILE"} {
		if home := os.Getenv(env); home != "" {
			log.WithError(err).WithField("env", env).Warn("user_home_dir_failed_using_env")
			return home
		}
	}
	if wd, wdErr := os.Getwd(); wdErr == nil {
		log.WithError(err).Warn("user_home_dir_failed_using_working_dir")
		return wd
	}
	return "."
}

// FileExists reports whether path can be stat'd.
func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
