package main

import (
	"os"

	"lingua-stream/configs"
	"lingua-stream/protocal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var container *protocal.Container

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		configs.InitViper(configDir, envName)
		if !verbose {
			logrus.SetLevel(logrus.WarnLevel)
		}
		var err error
		container, err = protocal.NewContainer(configs.GetViper(), nil)
		if err != nil {
			return err
		}
		registry = container.Registry
		library = container.Library
		return nil
	}
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		if container != nil {
			container.Close()
		}
	}
}
