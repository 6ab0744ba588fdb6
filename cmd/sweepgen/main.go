// sweepgen publishes synthetic sweeps over an encrypted channel so the
// server can be exercised without receiver hardware. It creates the server
// certificate in the key directory on first start; copy server.key to the
// subscriber.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"

	"github.com/RMahshie/sweepwatch/internal/channel"
	"github.com/RMahshie/sweepwatch/internal/keys"
	"github.com/RMahshie/sweepwatch/internal/sweep"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		log.Fatal().Err(err).Msg("sweepgen failed")
	}
}

func run(args []string) error {
	flagSet := pflag.NewFlagSet("sweepgen", pflag.ContinueOnError)
	flagSet.String("endpoint", "tcp://*:5555", "endpoint to bind the publisher to")
	flagSet.String("key-dir", ".", "directory holding server.key and server.key_secret")
	flagSet.Int64("low-hz", 2_400_000_000, "lowest tuning frequency in Hz")
	flagSet.Int64("high-hz", 2_500_000_000, "highest tuning frequency in Hz")
	flagSet.Int("fft-size", 20, "FFT points per tuning step")
	flagSet.Float64("rate", 50, "records published per second")
	flagSet.StringSlice("carrier", []string{"2437000000:-30"}, "synthetic carrier as freq_hz:power_db, repeatable")
	flagSet.Int("count", 0, "stop after this many records (0 runs until interrupted)")
	flagSet.Uint64("seed", uint64(time.Now().UnixNano()), "noise seed")

	if err := flagSet.Parse(args); err != nil {
		return err
	}

	// Flags win over SWEEPGEN_* environment variables
	v := viper.New()
	v.SetEnvPrefix("sweepgen")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if err := v.BindPFlags(flagSet); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	if v.GetFloat64("rate") <= 0 {
		return fmt.Errorf("--rate must be positive")
	}

	carriers, err := parseCarriers(v.GetStringSlice("carrier"))
	if err != nil {
		return err
	}

	keyDir := v.GetString("key-dir")
	created, err := keys.EnsureCertificate(keyDir, keys.ServerName)
	if err != nil {
		return fmt.Errorf("failed to prepare server certificate: %w", err)
	}
	if created {
		log.Info().Str("path", filepath.Join(keyDir, keys.ServerName+keys.PublicSuffix)).Msg("Generated server certificate, copy it to the subscriber")
	}

	cert, err := keys.LoadCertificate(filepath.Join(keyDir, keys.ServerName+keys.SecretSuffix))
	if err != nil {
		return err
	}
	secret, err := keys.Decode(cert.Secret)
	if err != nil {
		return fmt.Errorf("server secret key: %w", err)
	}

	pub, err := channel.Listen(v.GetString("endpoint"), secret)
	if err != nil {
		return err
	}
	defer pub.Close()

	endpoint, _ := pub.Endpoint()
	log.Info().Str("endpoint", endpoint).Str("server_key", cert.Public).Msg("Publishing synthetic sweeps")

	gen := sweep.NewGenerator(sweep.GeneratorConfig{
		LowHz:    v.GetInt64("low-hz"),
		HighHz:   v.GetInt64("high-hz"),
		FFTSize:  v.GetInt("fft-size"),
		Carriers: carriers,
	}, v.GetUint64("seed"))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return publish(ctx, pub, gen, rate.Limit(v.GetFloat64("rate")), v.GetInt("count"))
}

func publish(ctx context.Context, pub *channel.Publisher, gen *sweep.Generator, perSecond rate.Limit, count int) error {
	limiter := rate.NewLimiter(perSecond, 1)

	sent := 0
	for count == 0 || sent < count {
		if err := limiter.Wait(ctx); err != nil {
			break
		}
		frame, err := sweep.Encode(gen.Next(time.Now()))
		if err != nil {
			return err
		}
		if err := pub.Send(frame); err != nil {
			return err
		}
		sent++
		if sent%1000 == 0 {
			log.Info().Int("sent", sent).Msg("Published records")
		}
	}

	log.Info().Int("sent", sent).Msg("Publisher stopped")
	return nil
}

func parseCarriers(specs []string) ([]sweep.Carrier, error) {
	carriers := make([]sweep.Carrier, 0, len(specs))
	for _, s := range specs {
		freq, power, ok := strings.Cut(s, ":")
		if !ok {
			return nil, fmt.Errorf("carrier %q: want freq_hz:power_db", s)
		}
		hz, err := strconv.ParseInt(freq, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("carrier %q: %w", s, err)
		}
		db, err := strconv.ParseFloat(power, 64)
		if err != nil {
			return nil, fmt.Errorf("carrier %q: %w", s, err)
		}
		carriers = append(carriers, sweep.Carrier{FrequencyHz: hz, PowerDB: db})
	}
	return carriers, nil
}
