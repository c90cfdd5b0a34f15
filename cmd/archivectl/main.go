// Command archivectl is a thin operator CLI over pkg/archive: it loads a
// Config from a TOML file, resolves discovery if configured, connects, and
// runs one command against the resulting session. It exists to exercise the
// ambient stack end to end, the way the teacher's cmd/dbscanserv bootstraps
// a config file into a running command dispatch.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/golang/glog"
	"go.opentelemetry.io/otel"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.4.0"

	"archiveclient/pkg/aeronproto"
	"archiveclient/pkg/archive"
	"archiveclient/pkg/logging"
	"archiveclient/pkg/transport"
	"archiveclient/pkg/transport/faketransport"
)

func main() {
	var (
		cfgFile     string
		logLevel    string
		cmdString   string
		recordingID int64
		channel     string
		streamID    int
	)

	flag.StringVar(&cfgFile, "c", "", "specify config file.")
	flag.StringVar(&cfgFile, "config", "", "specify config file.")
	flag.StringVar(&logLevel, "log", "info", "log level: error|warning|info|debug|verbose")
	flag.StringVar(&cmdString, "cmd", "list-recordings", "specify command: list-recordings|start-recording|stop-recording|recording-position")
	flag.Int64Var(&recordingID, "recording", -1, "recording id, for commands that need one")
	flag.StringVar(&channel, "channel", "", "channel URI, for commands that need one")
	flag.IntVar(&streamID, "stream", 0, "stream id, for commands that need one")
	flag.Parse()

	logging.InitLogging(logLevel)
	defer glog.Flush()

	if cfgFile == "" {
		printUsage()
		os.Exit(1)
	}

	cfg, err := archive.LoadConfig(cfgFile)
	if err != nil {
		glog.Exitf("[ERROR] loading config %s: %v", cfgFile, err)
	}

	ctx := context.Background()
	shutdownTelemetry, err := initTelemetry(ctx)
	if err != nil {
		glog.Exitf("[ERROR] initializing telemetry: %v", err)
	}
	defer shutdownTelemetry(ctx)

	if err := cfg.ResolveDiscovery(ctx); err != nil {
		glog.Exitf("[ERROR] resolving discovery endpoints: %v", err)
	}

	aeron, err := dialAeron(cfg)
	if err != nil {
		glog.Exitf("[ERROR] connecting to media driver: %v", err)
	}

	a, err := archive.Connect(ctx, aeron, cfg, func(asyncErr error) {
		logging.Warningf("archivectl: async error: %v", asyncErr)
	})
	if err != nil {
		glog.Exitf("[ERROR] archive connect: %v", err)
	}
	defer a.Close()

	logging.Infof("archivectl: connected, control session %d", a.ControlSessionID())

	if err := runCommand(a, cmdString, recordingID, channel, int32(streamID)); err != nil {
		glog.Exitf("[ERROR] %s: %v", cmdString, err)
	}
}

// initTelemetry installs real SDK-backed tracer and meter providers in
// place of otel's global no-op defaults, tagged with this process's
// resource attributes. It returns a shutdown func an embedder that never
// configures an exporter can still call: an exporter-less SDK provider
// records spans and instruments but drops them at flush, which is enough
// to exercise pkg/telemetry's instrumentation path end to end.
func initTelemetry(ctx context.Context) (func(context.Context) error, error) {
	res, err := resource.Merge(resource.Default(), resource.NewSchemaless(
		semconv.ServiceNameKey.String("archivectl"),
	))
	if err != nil {
		return nil, err
	}

	tracerProvider := sdktrace.NewTracerProvider(sdktrace.WithResource(res))
	otel.SetTracerProvider(tracerProvider)

	meterProvider := sdkmetric.NewMeterProvider(sdkmetric.WithResource(res))
	otel.SetMeterProvider(meterProvider)

	return func(shutdownCtx context.Context) error {
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return meterProvider.Shutdown(shutdownCtx)
	}, nil
}

// dialAeron stands in for the real Aeron client, which is an external
// collaborator this module never constructs itself (SPEC_FULL.md §A.4).
// An embedder wires their own transport.Aeron here; archivectl uses the
// in-memory faketransport so the config/connect/command path above runs
// end to end without a media driver.
func dialAeron(cfg *archive.Config) (transport.Aeron, error) {
	return faketransport.NewAeron(), nil
}

func runCommand(a *archive.Archive, cmd string, recordingID int64, channel string, streamID int32) error {
	switch cmd {
	case "list-recordings":
		count, err := a.ListRecordings(0, 100, func(d aeronproto.RecordingDescriptor) {
			fmt.Printf("recording %d: %s stream %d, position [%d,%d)\n",
				d.RecordingID, d.StrippedChannel, d.StreamID, d.StartPosition, d.StopPosition)
		})
		if err != nil {
			return err
		}
		logging.Infof("archivectl: listed %d recording(s)", count)
		return nil

	case "start-recording":
		id, err := a.StartRecording(channel, streamID, aeronproto.SourceLocationLocal, true)
		if err != nil {
			return err
		}
		fmt.Printf("subscription id: %d\n", id)
		return nil

	case "stop-recording":
		_, err := a.StopRecording(channel, streamID)
		return err

	case "recording-position":
		position, err := a.GetRecordingPosition(recordingID)
		if err != nil {
			return err
		}
		fmt.Printf("recording %d position: %d\n", recordingID, position)
		return nil

	default:
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func printUsage() {
	progName := filepath.Base(os.Args[0])
	fmt.Printf("Usage:              ./%s <-c|-config> <cfg_file> [<options>]\n\n", progName)
	fmt.Printf("List recordings:    ./%s -c <cfg_file> -cmd list-recordings\n", progName)
	fmt.Printf("Start a recording:  ./%s -c <cfg_file> -cmd start-recording -channel <uri> -stream <id>\n", progName)
	fmt.Printf("Stop a recording:   ./%s -c <cfg_file> -cmd stop-recording -channel <uri> -stream <id>\n", progName)
	fmt.Printf("Recording position: ./%s -c <cfg_file> -cmd recording-position -recording <id>\n", progName)
}
