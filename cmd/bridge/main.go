package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/cloudkucooland/roombabridge"
	"github.com/cloudkucooland/roombabridge/accessory"
	"github.com/cloudkucooland/roombabridge/config"
	"github.com/cloudkucooland/roombabridge/platform"
	"github.com/cloudkucooland/roombabridge/roomba"

	"github.com/brutella/hc/log"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	var dir, file string
	var debug bool

	app := cli.App{
		Name:  "roombabridge",
		Usage: "expose REST-controlled vacuums to HomeKit",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "dir",
				Value:       "config",
				Usage:       "configuration directory",
				Destination: &dir,
			},
			&cli.StringFlag{
				Name:        "config",
				Value:       "server.json",
				Usage:       "configuration file",
				Destination: &file,
			},
			&cli.BoolFlag{
				Name:        "debug",
				Usage:       "verbose logging",
				Destination: &debug,
			},
		},
		Action: func(c *cli.Context) error {
			logger := logrus.New()
			logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
			if debug {
				log.Debug.Enable()
				logger.SetLevel(logrus.DebugLevel)
			}
			roomba.SetLogger(logger)

			fulldir, err := filepath.Abs(dir)
			if err != nil {
				return cli.Exit(err, 1)
			}
			conf, err := config.Load(filepath.Join(fulldir, file))
			if err != nil {
				return cli.Exit(err, 1)
			}
			conf.ConfigDir = fulldir
			conf.Debug = debug

			// spin up platforms to listen to devices
			roombabridge.BootstrapPlatforms(conf)

			// load accessory configs
			accs, errs := accessory.LoadDir(filepath.Join(fulldir, "accessories"))
			for _, err := range errs {
				log.Info.Println(err.Error())
			}
			if len(accs) == 0 {
				log.Info.Println("no accessories configured")
			}
			for _, acc := range accs {
				roombabridge.AddAccessory(acc)
			}

			// HC can only be started once all accessories are known
			if err := roombabridge.StartHC(); err != nil {
				platform.ShutdownAllPlatforms()
				return cli.Exit(err, 1)
			}

			// run all the background processes
			platform.Background()

			// wait for signal to shut down
			sigch := make(chan os.Signal, 3)
			signal.Notify(sigch, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM, syscall.SIGHUP, os.Interrupt)

			// loop until signal sent
			sig := <-sigch

			log.Info.Printf("shutdown requested by signal: %s", sig)
			platform.ShutdownAllPlatforms()
			return nil
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Info.Panic(err)
	}
}
