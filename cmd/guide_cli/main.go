package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"guidance-llm/internal/app"
	"guidance-llm/internal/config"
	"guidance-llm/internal/domain"
	"guidance-llm/internal/service"
)

type session struct {
	userID    string
	sessionID string
	area      string
	lastID    string
	lastToken string
	history   []domain.HistoryMessage
}

func main() {
	ctx := context.Background()
	reader := bufio.NewReader(os.Stdin)

	_ = godotenv.Load()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal(err)
	}

	logger := zap.NewExample()
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger, app.Options{InlineTasks: true})
	if err != nil {
		log.Fatal(err)
	}
	defer a.Close(ctx)

	userID := strings.TrimSpace(os.Getenv("GUIDE_CLI_USER"))
	if userID == "" {
		userID = "cli-trainee"
	}
	s := &session{userID: userID, sessionID: uuid.NewString()}

	fmt.Println("===== Guidance CLI =====")
	fmt.Printf("Usuario: %s  Sesion: %s\n", s.userID, s.sessionID)
	fmt.Println("Comandos: /trait <nombre> <0-100>, /preset <nombre>, /presets, /settings, /area <area>, /feedback <1-5> [comentario], /quit")

	for {
		fmt.Print("\n> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			cmd, err := parseCommand(line)
			if err != nil {
				fmt.Println(err)
				continue
			}
			if cmd.name == "quit" {
				return
			}
			if err := runCommand(ctx, a, s, cmd); err != nil {
				fmt.Printf("error: %v\n", err)
			}
			continue
		}

		ask(ctx, a, s, line)
	}
}

func ask(ctx context.Context, a *app.App, s *session, question string) {
	req := domain.GuidanceRequest{
		UserID:              s.userID,
		SessionID:           s.sessionID,
		Question:            question,
		Context:             domain.RequestContext{Area: s.area},
		ConversationHistory: s.history,
	}
	resp, err := a.Recovery.Handle(ctx, req)
	if err != nil {
		var exhausted *service.RecoveryExhaustedError
		if errors.As(err, &exhausted) {
			fmt.Printf("El servicio no pudo responder (error id %s)\n", exhausted.ErrorID)
			return
		}
		fmt.Printf("error: %v\n", err)
		return
	}

	fmt.Printf("\n%s\n", resp.Guidance.Message)
	for _, item := range resp.Guidance.ActionItems {
		fmt.Printf("  - %s\n", item)
	}
	for _, m := range resp.Guidance.SuggestedModules {
		fmt.Printf("  [modulo] %s: %s\n", m.Title, m.Reason)
	}
	meta := resp.Guidance.Meta
	fmt.Printf("(fuente=%s estrategia=%s confianza=%.2f template=%s ajustes=%v)\n",
		meta.Source, meta.PrimaryStrategy, resp.Guidance.Confidence, meta.TemplateID, meta.AdaptiveToneAdjustments)

	s.lastID = resp.MessageID
	s.lastToken = resp.FeedbackToken
	s.history = append(s.history,
		domain.HistoryMessage{Role: "user", Content: question},
		domain.HistoryMessage{Role: "assistant", Content: resp.Guidance.Message},
	)
	if len(s.history) > 20 {
		s.history = s.history[len(s.history)-20:]
	}
}

type command struct {
	name string
	args []string
}

// parseCommand separa "/nombre arg1 arg2..." y valida la aridad minima de cada comando.
func parseCommand(line string) (command, error) {
	fields := strings.Fields(strings.TrimPrefix(strings.TrimSpace(line), "/"))
	if len(fields) == 0 {
		return command{}, errors.New("comando vacio")
	}
	cmd := command{name: strings.ToLower(fields[0]), args: fields[1:]}
	minArgs := map[string]int{
		"trait": 2, "preset": 1, "presets": 0, "settings": 0, "area": 0, "feedback": 1, "quit": 0,
	}
	n, ok := minArgs[cmd.name]
	if !ok {
		return command{}, fmt.Errorf("comando desconocido: /%s", cmd.name)
	}
	if len(cmd.args) < n {
		return command{}, fmt.Errorf("uso incorrecto de /%s", cmd.name)
	}
	return cmd, nil
}

func runCommand(ctx context.Context, a *app.App, s *session, cmd command) error {
	switch cmd.name {
	case "trait":
		v, err := strconv.ParseFloat(cmd.args[1], 64)
		if err != nil {
			return fmt.Errorf("valor invalido %q", cmd.args[1])
		}
		profile, err := a.Personality.Update(ctx, service.PersonalityUpdate{
			UserID: s.userID,
			Traits: map[string]float64{strings.ToLower(cmd.args[0]): v},
		})
		if err != nil {
			return err
		}
		printProfile(profile)
	case "preset":
		profile, err := a.Personality.Update(ctx, service.PersonalityUpdate{UserID: s.userID, Preset: strings.Join(cmd.args, " ")})
		if err != nil {
			return err
		}
		printProfile(profile)
	case "presets":
		for _, p := range a.Personality.Presets() {
			fmt.Printf("%-20s %s\n", p.Name, p.Description)
		}
	case "settings":
		profile, err := a.Personality.Get(ctx, s.userID)
		if err != nil {
			return err
		}
		printProfile(profile)
	case "area":
		s.area = strings.Join(cmd.args, " ")
		fmt.Printf("Area: %q\n", s.area)
	case "feedback":
		if s.lastID == "" {
			return errors.New("todavia no hay respuesta para calificar")
		}
		rating, err := strconv.Atoi(cmd.args[0])
		if err != nil {
			return fmt.Errorf("rating invalido %q", cmd.args[0])
		}
		res, err := a.Feedback.Submit(ctx, service.FeedbackRequest{
			FeedbackToken: s.lastToken,
			MessageID:     s.lastID,
			Rating:        rating,
			Comments:      strings.Join(cmd.args[1:], " "),
		})
		if err != nil {
			return err
		}
		fmt.Printf("Feedback guardado. Confianza ajustada: %.2f\n", res.Confidence)
	}
	return nil
}

func printProfile(p domain.PersonalityProfile) {
	fmt.Printf("Preset: %s\n", p.PresetName)
	for _, tv := range p.Traits.Ordered() {
		fmt.Printf("  %-14s %3d\n", tv.Name, tv.Value)
	}
	for _, r := range p.Recommendations {
		fmt.Printf("  sugerencia: %s %d -> %d (%s)\n", r.Trait, r.CurrentValue, r.RecommendedValue, r.Reason)
	}
}
