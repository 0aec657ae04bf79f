package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/z-debate/backend/internal/config"
	debatemodel "github.com/zhouzirui/z-debate/backend/internal/model/debate"
	"github.com/zhouzirui/z-debate/backend/internal/model/persona"
	"github.com/zhouzirui/z-debate/backend/internal/service/ai"
	"github.com/zhouzirui/z-debate/backend/internal/service/backend"
	"github.com/zhouzirui/z-debate/backend/internal/service/debate"
	"github.com/zhouzirui/z-debate/backend/internal/service/ratelimit"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	topic := flag.String("topic", "", "辩题，作为种子台词")
	turns := flag.Int("turns", 4, "最多调度的回合数")
	rotation := flag.String("rotation", "", "逗号分隔的发言顺序，例如 CLAUDE,CHATGPT,DEEPSEEK,GROK")
	delay := flag.Duration("delay", 0, "回合之间的最小间隔")
	timeout := flag.Duration("timeout", 3*time.Minute, "整场辩论的超时时间")
	scriptDir := flag.String("script", "", "台词脚本输出目录，留空则不写文件")

	flag.Parse()

	if strings.TrimSpace(*topic) == "" {
		flag.Usage()
		log.Fatal("请通过 -topic 指定辩题")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	registry, err := backend.Build(ctx, cfg, ratelimit.New(cfg.Backends.MinInterval))
	if err != nil {
		log.Fatalf("后端初始化失败: %v", err)
	}
	log.Printf("可用角色: %v", registry.Available())

	profiles := persona.Seed()
	if cfg.Debate.PersonasFile != "" {
		if profiles, err = persona.LoadProfiles(cfg.Debate.PersonasFile, profiles); err != nil {
			log.Fatalf("角色配置加载失败: %v", err)
		}
	}
	personas := persona.NewMemoryStore(profiles)
	engine := debate.NewEngine(registry, ai.NewPromptBuilder(personas), debate.Options{
		HistoryWindow: cfg.Debate.HistoryWindow,
		MaxTurns:      *turns,
	})

	scriptLog, err := debate.NewScriptLog(*scriptDir)
	if err != nil {
		log.Fatalf("脚本目录不可用: %v", err)
	}

	pacing := debate.PacerOptions{TurnDelay: *delay}
	if *delay <= 0 {
		pacing.TurnDelay = -1
	}
	svc := debate.NewService(debate.NewStore(), engine, debate.ServiceOptions{Pacing: pacing, Script: scriptLog})

	var names []string
	if *rotation != "" {
		names = strings.Split(*rotation, ",")
	}
	session, err := svc.Start(ctx, *topic, names)
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}

	pacer := svc.NewPacer()
	printer := debate.SinkFunc(func(_ context.Context, ev debatemodel.Event) error {
		switch ev.Type {
		case debatemodel.EventMessage, debatemodel.EventError:
			fmt.Fprintln(os.Stdout, ev.Text)
			// 终端没有打字动画，立即回执
			pacer.Acknowledge()
		case debatemodel.EventSessionEnded:
			fmt.Fprintf(os.Stdout, "-- %s after %d turns\n", ev.State, ev.TurnIndex)
		}
		return nil
	})

	state, err := pacer.Run(ctx, session, svc.Deliver(session.ID(), printer))
	if err != nil {
		log.Fatalf("辩论中断: %v", err)
	}
	if scriptLog != nil {
		log.Printf("台词已写入 %s", scriptLog.Path(session.ID()))
	}
	log.Printf("会话 %s 结束: %s", session.ID(), state)
}
