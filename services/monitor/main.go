package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/gr4ytips/anavi-monitoring/commonGo"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/config"
	"github.com/gr4ytips/anavi-monitoring/services/monitor/factory"
	"github.com/multiversx/mx-chain-core-go/core/check"
	logger "github.com/multiversx/mx-chain-logger-go"
	"github.com/urfave/cli"
	"golang.org/x/crypto/bcrypt"
)

const (
	defaultLogsPath      = "logs"
	logFilePrefix        = "monitor"
	logFileLifeSpanInSec = 86400 // 24h
	logFileLifeSpanInMB  = 1024  // 1GB
	envUsername          = "DASHBOARD_USERNAME"
	envPasswordHash      = "DASHBOARD_PASSWORD_HASH"
	envJWTSecret         = "DASHBOARD_JWT_SECRET"
	envWebhookAPIKey     = "WEBHOOK_API_KEY"
)

// appVersion should be populated at build time using ldflags
// Usage examples:
// Linux/macOS:
//
//	go build -v -ldflags="-X main.appVersion=$(git describe --all | cut -c7-32)
var appVersion = "undefined"
var fileLogging commonGo.FileLoggingHandler

var (
	monitorHelpTemplate = `NAME:
   {{.Name}} - {{.Usage}}
USAGE:
   {{.HelpName}} {{if .VisibleFlags}}[global options]{{end}}{{if .Commands}} command [command options] [arguments...]{{end}}
   {{if len .Authors}}
AUTHOR:
   {{range .Authors}}{{ . }}{{end}}
   {{end}}{{if .Commands}}
COMMANDS:
   {{range .Commands}}{{join .Names ", "}}{{ "\t" }}{{.Usage}}
   {{end}}
GLOBAL OPTIONS:
   {{range .VisibleFlags}}{{.}}
   {{end}}
VERSION:
   {{.Version}}
   {{end}}
`

	log = logger.GetOrCreate("main")

	// logLevel defines the logger level
	logLevel = cli.StringFlag{
		Name: "log-level",
		Usage: "This flag specifies the logger `level(s)`. It can contain multiple comma-separated value. For example" +
			", if set to *:INFO the logs for all packages will have the INFO level. However, if set to *:INFO,poller:DEBUG" +
			" the logs for all packages will have the INFO level, excepting the poller package which will receive a DEBUG" +
			" log level.",
		Value: "*:" + logger.LogInfo.String(),
	}
	// logFile is used when the log output needs to be logged in a file
	logSaveFile = cli.BoolFlag{
		Name:  "log-save",
		Usage: "Boolean option for enabling log saving. If set, it will automatically save all the logs into a file.",
	}
	// workingDirectory defines a flag for the path for the working directory.
	workingDirectory = cli.StringFlag{
		Name:  "working-directory",
		Usage: "This flag specifies the `directory` where the monitor will store its logs.",
		Value: "",
	}
	// configFile defines the path of the TOML configuration
	configFile = cli.StringFlag{
		Name:  "config",
		Usage: "The `filepath` of the TOML configuration file.",
		Value: "./config.toml",
	}
	// envFile defines the path of the file holding the secrets
	envFile = cli.StringFlag{
		Name:  "env-file",
		Usage: "The `filepath` of the .env file holding the dashboard credentials.",
		Value: "./.env",
	}
)

func main() {
	app := cli.NewApp()
	cli.AppHelpTemplate = monitorHelpTemplate
	app.Name = "ANAVI sensor monitor"
	app.Version = fmt.Sprintf("%s/%s/%s-%s", appVersion, runtime.Version(), runtime.GOOS, runtime.GOARCH)
	app.Usage = "This is the entry point for starting the service that samples the ANAVI board sensors, raises threshold alerts and serves the dashboard API"
	app.Flags = []cli.Flag{
		logLevel,
		logSaveFile,
		workingDirectory,
		configFile,
		envFile,
	}
	app.Commands = []cli.Command{
		{
			Name:      "hash-password",
			Usage:     "prints the bcrypt hash to be set as " + envPasswordHash,
			ArgsUsage: "<password>",
			Action:    hashPassword,
		},
	}
	app.Authors = []cli.Author{
		{
			Name:  "gr4ytips",
			Email: "gr4ytips@users.noreply.github.com",
		},
	}

	app.Action = run

	defer func() {
		if fileLogging != nil {
			_ = fileLogging.Close()
		}
	}()

	err := app.Run(os.Args)
	if err != nil {
		log.Error(err.Error())
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	saveLogFile := ctx.GlobalBool(logSaveFile.Name)
	workingDir := ctx.GlobalString(workingDirectory.Name)

	err := logger.SetLogLevel(ctx.GlobalString(logLevel.Name))
	if err != nil {
		return err
	}

	fileLogging, err = commonGo.AttachFileLogger(log, defaultLogsPath, logFilePrefix, saveLogFile, workingDir)
	if err != nil {
		return err
	}

	if !check.IfNil(fileLogging) {
		timeLogLifeSpan := time.Second * time.Duration(logFileLifeSpanInSec)
		sizeLogLifeSpanInMB := uint64(logFileLifeSpanInMB)
		err = fileLogging.ChangeFileLifeSpan(timeLogLifeSpan, sizeLogLifeSpanInMB)
		if err != nil {
			return err
		}
	}

	log.Info("Starting sensor monitor", "version", appVersion, "pid", os.Getpid())

	cfg, err := config.LoadConfig(ctx.GlobalString(configFile.Name))
	if err != nil {
		return err
	}

	credentials, err := readCredentials(ctx.GlobalString(envFile.Name), cfg)
	if err != nil {
		return err
	}

	handler, err := factory.NewComponentsHandler(credentials, *cfg)
	if err != nil {
		return err
	}

	handler.Start()
	defer handler.Close()

	log.Info("Sensor monitor started", "name", cfg.Name, "sensors", len(cfg.Sensors), "mock mode", cfg.Polling.MockMode)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	<-sigs

	log.Info("Application closing, calling Close on all subcomponents...")

	return nil
}

func readCredentials(envFilePath string, cfg *config.Config) (factory.Credentials, error) {
	if !cfg.API.Enabled && !cfg.Webhook.Enabled {
		return factory.Credentials{}, nil
	}

	envFileContents := make(map[string]string)
	if cfg.API.Enabled {
		envFileContents[envUsername] = ""
		envFileContents[envPasswordHash] = ""
		envFileContents[envJWTSecret] = ""
	}
	if cfg.Webhook.Enabled {
		envFileContents[envWebhookAPIKey] = ""
	}

	err := commonGo.ReadEnvFile(envFilePath, envFileContents)
	if err != nil {
		return factory.Credentials{}, err
	}

	return factory.Credentials{
		AuthUsername:     envFileContents[envUsername],
		AuthPasswordHash: envFileContents[envPasswordHash],
		JWTSecret:        envFileContents[envJWTSecret],
		WebhookAPIKey:    envFileContents[envWebhookAPIKey],
	}, nil
}

func hashPassword(ctx *cli.Context) error {
	password := ctx.Args().First()
	if password == "" {
		return errors.New("the password argument is required")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	fmt.Println(string(hash))

	return nil
}
