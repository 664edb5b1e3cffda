package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/serenibot/serenibot/backend/internal/config"
	"github.com/serenibot/serenibot/backend/internal/logger"
	speechmodel "github.com/serenibot/serenibot/backend/internal/model/speech"
	speechservice "github.com/serenibot/serenibot/backend/internal/service/speech"
)

// voicetester exercises the ASR/TTS clients against the configured
// backends without starting the full API server.
func main() {
	log := logger.New()

	if err := godotenv.Load(); err != nil {
		log.WithError(err).Warn("no .env file loaded, using system environment only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("failed to load configuration")
	}
	if !cfg.Speech.Enabled {
		log.Fatal("speech backends not configured, set SPEECH_ASR_BASE_URL and/or SPEECH_TTS_BASE_URL")
	}

	mode := flag.String("mode", "", "test mode: asr or tts")
	audioPath := flag.String("audio", "", "input audio file for asr mode")
	text := flag.String("text", "", "input text for tts mode")
	outputPath := flag.String("out", "", "output audio file for tts mode (default reply.mp3)")
	language := flag.String("lang", "", "language code, defaults to configured language")
	timeout := flag.Duration("timeout", 45*time.Second, "request timeout")
	flag.Parse()

	if *mode != "asr" && *mode != "tts" {
		flag.Usage()
		log.Fatal("specify -mode=asr or -mode=tts")
	}

	svc := speechservice.NewService(&speechmodel.Config{
		ASRBaseURL: cfg.Speech.ASRBaseURL,
		ASRKey:     cfg.Speech.ASRKey,
		TTSBaseURL: cfg.Speech.TTSBaseURL,
		Language:   cfg.Speech.Language,
		TTSSpeed:   cfg.Speech.TTSSpeed,
		Timeout:    cfg.Speech.Timeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	sessionID := fmt.Sprintf("manual-%d", time.Now().UnixNano())

	switch *mode {
	case "asr":
		if *audioPath == "" {
			log.Fatal("-audio is required in asr mode")
		}
		audio, err := os.ReadFile(*audioPath)
		if err != nil {
			log.WithError(err).Fatal("failed to read audio file")
		}

		format := filepath.Ext(*audioPath)
		if len(format) > 1 {
			format = format[1:]
		}

		resp, err := svc.TranscribeBuffer(ctx, sessionID, audio, format, *language)
		if err != nil {
			log.WithError(err).Fatal("transcription failed")
		}
		fmt.Printf("transcript: %s\nconfidence: %.2f\n", resp.Text, resp.Confidence)

	case "tts":
		if *text == "" {
			log.Fatal("-text is required in tts mode")
		}

		resp, err := svc.SynthesizeToBuffer(ctx, sessionID, *text, *language)
		if err != nil {
			log.WithError(err).Fatal("synthesis failed")
		}

		out := *outputPath
		if out == "" {
			out = "reply.mp3"
		}
		if err := os.WriteFile(out, resp.AudioData, 0o644); err != nil {
			log.WithError(err).Fatal("failed to write audio file")
		}
		fmt.Printf("wrote %d bytes to %s\n", len(resp.AudioData), out)
	}
}
