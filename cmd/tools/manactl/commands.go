package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/zhouzirui/mana-voice/backend/internal/analysis/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/language"
	"github.com/zhouzirui/mana-voice/backend/internal/analysis/safety"
	speechmodel "github.com/zhouzirui/mana-voice/backend/internal/model/speech"
	"github.com/zhouzirui/mana-voice/backend/internal/service/ai"
	emotionservice "github.com/zhouzirui/mana-voice/backend/internal/service/emotion"
	"github.com/zhouzirui/mana-voice/backend/internal/service/orchestrator"
	sessionstore "github.com/zhouzirui/mana-voice/backend/internal/service/session"
	"github.com/zhouzirui/mana-voice/backend/internal/service/speech"
)

// inspection is what the scanner, router and classifier make of one utterance.
type inspection struct {
	Text     string              `json:"text"`
	Safety   safety.Verdict      `json:"safety"`
	Language language.Resolution `json:"language"`
	Emotion  emotion.Decision    `json:"emotion"`
}

func inspect(text, sessionLang, override string) (inspection, error) {
	session := language.Hindi
	if sessionLang != "" {
		tag, ok := language.ParseTag(sessionLang)
		if !ok {
			return inspection{}, fmt.Errorf("unsupported session language %q", sessionLang)
		}
		session = tag
	}
	var over language.Tag
	if override != "" {
		tag, ok := language.ParseTag(override)
		if !ok {
			return inspection{}, fmt.Errorf("unsupported override %q", override)
		}
		over = tag
	}

	hint := session
	if over != "" {
		hint = over
	}
	verdict := safety.Scan(text, hint)
	decision := emotion.Analyze(text, nil)
	if verdict.Crisis {
		decision.Label = emotion.Crisis
	}
	return inspection{
		Text:     text,
		Safety:   verdict,
		Language: language.NewRouter(session).Route(language.Input{Override: over, Text: text, Session: session}),
		Emotion:  decision,
	}, nil
}

func (a *app) inspectCommand() *cobra.Command {
	var sessionLang, override string
	cmd := &cobra.Command{
		Use:   "inspect <utterance>",
		Short: "Run the crisis scanner, language router and emotion classifier offline",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := inspect(strings.Join(args, " "), sessionLang, override)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		},
	}
	cmd.Flags().StringVar(&sessionLang, "session-lang", "hi", "session default language")
	cmd.Flags().StringVar(&override, "lang", "", "per-turn language override")
	return cmd
}

func (a *app) speechService() (*speech.Service, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, err
	}
	svc := speech.NewService(cfg.Speech)
	if !svc.CanTranscribe() && !svc.CanSynthesize() {
		return nil, errors.New("no speech providers configured; set OPENAI_API_KEY or SARVAM_API_KEY")
	}
	return svc, nil
}

func (a *app) asrCommand() *cobra.Command {
	var audioPath, format, lang string
	cmd := &cobra.Command{
		Use:   "asr",
		Short: "Transcribe an audio file through the routed speech-to-text vendors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if audioPath == "" {
				return errors.New("--audio is required")
			}
			data, err := os.ReadFile(audioPath)
			if err != nil {
				return fmt.Errorf("read audio: %w", err)
			}
			var hint language.Tag
			if lang != "" {
				tag, ok := language.ParseTag(lang)
				if !ok {
					return fmt.Errorf("unsupported language %q", lang)
				}
				hint = tag
			}

			svc, err := a.speechService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			transcript, err := svc.Transcribe(ctx, &speechmodel.TranscribeRequest{
				Audio:    data,
				Format:   speechmodel.DetectFormat(format, audioPath, ""),
				Filename: filepath.Base(audioPath),
				Hint:     hint,
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), transcript)
		},
	}
	cmd.Flags().StringVar(&audioPath, "audio", "", "input audio file")
	cmd.Flags().StringVar(&format, "format", "", "audio format (defaults to the file extension)")
	cmd.Flags().StringVar(&lang, "lang", "", "language hint: en, hi or hi-en")
	return cmd
}

func (a *app) ttsCommand() *cobra.Command {
	var text, lang, label, out string
	cmd := &cobra.Command{
		Use:   "tts",
		Short: "Synthesize text through the routed text-to-speech vendors",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if strings.TrimSpace(text) == "" {
				return errors.New("--text is required")
			}
			tag, ok := language.ParseTag(lang)
			if !ok {
				return fmt.Errorf("unsupported language %q", lang)
			}

			svc, err := a.speechService()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), a.timeout)
			defer cancel()

			audio, err := svc.Synthesize(ctx, &speechmodel.SynthesizeRequest{
				Text:     text,
				Language: tag,
				Emotion:  emotion.Label(label),
			})
			if err != nil {
				return err
			}
			if out == "" {
				out = speechmodel.Filename("", audio.Format)
			}
			if err := os.WriteFile(out, audio.Data, 0o644); err != nil {
				return fmt.Errorf("write audio: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d bytes of %s from %s to %s\n", len(audio.Data), audio.Format, audio.Provider, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&text, "text", "", "text to speak")
	cmd.Flags().StringVar(&lang, "lang", "en", "language: en, hi or hi-en")
	cmd.Flags().StringVar(&label, "emotion", "", "emotion label that adjusts pace")
	cmd.Flags().StringVar(&out, "out", "", "output file (default audio.<format>)")
	return cmd
}

func (a *app) chatCommand() *cobra.Command {
	var lang string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a text session with the configured reply model",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.loadConfig()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			deps := orchestrator.Deps{Store: sessionstore.NewStore()}
			if cfg.AI.Enabled() {
				aiSvc, err := ai.NewService(ctx, cfg.AI)
				if err != nil {
					return err
				}
				deps.Responder = aiSvc
				guidance, err := emotionservice.NewService(ctx, aiSvc.GetChatModel(), emotionservice.Config{
					LLMEnabled:   cfg.AI.EmotionLLMEnabled,
					HistoryLimit: cfg.AI.EmotionHistoryLimit,
				})
				if err != nil {
					return err
				}
				deps.Guidance = guidance
			} else {
				fmt.Fprintln(cmd.ErrOrStderr(), "no chat model configured; only safety scripts will answer")
			}

			orch, err := orchestrator.NewService(deps, orchestrator.Config{
				DefaultLanguage:   cfg.Session.DefaultTag(),
				MaxUtteranceRunes: cfg.Session.MaxUtteranceRunes,
				TurnTimeout:       a.timeout,
			})
			if err != nil {
				return err
			}
			return chatLoop(ctx, orch, lang, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&lang, "lang", "", "session language (default from config)")
	return cmd
}

// chatLoop reads one utterance per line until EOF or "/quit", then prints the session
// summary.
func chatLoop(ctx context.Context, orch *orchestrator.Service, lang string, in io.Reader, out io.Writer) error {
	created, err := orch.CreateSession(ctx, lang)
	if err != nil {
		return err
	}
	id := created.Session.ID
	fmt.Fprintf(out, "mana> %s\n", created.Greeting)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "you> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}

		result, err := orch.SubmitTurn(ctx, orchestrator.TurnRequest{SessionID: id, Text: line})
		if err != nil {
			fmt.Fprintf(out, "! %v\n", err)
			continue
		}
		fmt.Fprintf(out, "mana [%s %s %s]> %s\n", result.Language.Tag, result.Emotion, result.Safety, result.Reply)
	}
	if err := scanner.Err(); err != nil {
		return err
	}

	summary, err := orch.CloseSession(ctx, id)
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	return printJSON(out, summary)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
