package main

import (
	"log"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/mbeckers/knx-weather-integration/cmd"
)

func main() {
	app := &cli.App{
		Name:   "knx-weather-controller",
		Usage:  "tracks knx weather stations and lights, exposes them as sensors",
		Action: cmd.WeatherCommand,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "knx-gateway-host",
				Usage: "hostname of the knxd web gateway (env KNX_GATEWAY_HOST)",
			},
			&cli.BoolFlag{
				Name:  "knx-gateway-ssl",
				Usage: "connect to the gateway over wss (env KNX_GATEWAY_SSL)",
			},
			&cli.StringFlag{
				Name:  "knx-client-name",
				Usage: "client name announced to the gateway (env KNX_CLIENT_NAME)",
			},
			&cli.StringFlag{
				Name:  "devices-file",
				Usage: "path to the devices yaml file (env DEVICES_FILE)",
			},
			&cli.StringFlag{
				Name:  "mqtt-host",
				Usage: "mqtt broker address (env MQTT_HOST)",
			},
			&cli.StringFlag{
				Name:  "mqtt-user",
				Usage: "mqtt username (env MQTT_USER)",
			},
			&cli.StringFlag{
				Name:  "mqtt-pass",
				Usage: "mqtt password (env MQTT_PASS)",
			},
			&cli.StringFlag{
				Name:    "database-url",
				EnvVars: []string{"DATABASE_URL"},
			},
			&cli.StringFlag{
				Name:    "migrations-folder",
				EnvVars: []string{"MIGRATIONS_FOLDER"},
			},
			&cli.DurationFlag{
				Name:  "poll-interval",
				Usage: "state sync interval (env POLL_INTERVAL)",
			},
			&cli.StringFlag{
				Name:  "api-token-hash",
				Usage: "bcrypt hash of the api bearer token (env API_TOKEN_HASH)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "zap log level (env LOG_LEVEL)",
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}
