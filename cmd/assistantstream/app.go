package main

import (
	"fmt"
	"io"
	"time"

	sdkanthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/hupe1980/assistantstream"
	"github.com/hupe1980/assistantstream/agent"
	"github.com/hupe1980/assistantstream/config"
	"github.com/hupe1980/assistantstream/logging"
	"github.com/hupe1980/assistantstream/metrics"
	"github.com/hupe1980/assistantstream/model"
	"github.com/hupe1980/assistantstream/model/anthropic"
	"github.com/hupe1980/assistantstream/model/openai"
	"github.com/hupe1980/assistantstream/tool"
)

// app wires the configured components shared by serve and chat.
type app struct {
	cfg      config.Config
	logger   *logging.StreamLogger
	registry *prometheus.Registry
	runs     *assistantstream.AssistantStream
	agent    *agent.ChatAgent
}

func newApp(cfg config.Config, logOutput io.Writer) (*app, error) {
	logger := logging.NewLogger(&logging.LoggerConfig{
		Level:     cfg.Log.ParseLogLevel(),
		Format:    cfg.Log.Format,
		Output:    logOutput,
		Component: "assistantstream",
	})

	var (
		registry *prometheus.Registry
		recorder metrics.Recorder = metrics.NoOp{}
	)
	if cfg.Metrics.Enabled {
		registry = prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		recorder = metrics.NewPrometheus(cfg.Metrics.Namespace, registry)
	}

	llm, err := newModel(cfg.Agent)
	if err != nil {
		return nil, err
	}

	chat := agent.NewChatAgent(cfg.Agent.Name, llm, func(o *agent.ChatAgentOptions) {
		if cfg.Agent.Instruction != "" {
			o.Instruction = agent.NewInstructionFromText(cfg.Agent.Instruction)
		}
		o.EnableStreaming = cfg.Agent.Streaming
		o.MaxSteps = cfg.Agent.MaxSteps
		o.MaxParallelTools = cfg.Agent.MaxParallelTools
		o.ToolTimeout = cfg.Agent.ToolTimeout
		o.Logger = logger.WithComponent("agent")
	})
	chat.RegisterTools(tool.NewStateManagerTool(), currentTimeTool())

	runs := assistantstream.New(func(o *assistantstream.Options) {
		o.Config.GracePeriod = cfg.Run.GracePeriod
		o.Logger = logger.WithComponent("run")
		o.Metrics = recorder
	})

	return &app{cfg: cfg, logger: logger, registry: registry, runs: runs, agent: chat}, nil
}

func newModel(cfg config.AgentConfig) (model.Model, error) {
	switch cfg.Provider {
	case "mock":
		return model.NewMockModel(cfg.Model, "mock"), nil
	case "openai":
		return openai.NewModel(func(o *openai.Options) {
			if cfg.Model != "" {
				o.Model = cfg.Model
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		}), nil
	case "anthropic":
		return anthropic.NewModel(func(o *anthropic.Options) {
			if cfg.Model != "" {
				o.Model = sdkanthropic.Model(cfg.Model)
			}
			o.Temperature = cfg.Temperature
			o.APIKey = cfg.APIKey
		}), nil
	default:
		return nil, fmt.Errorf("unknown model provider %q", cfg.Provider)
	}
}

type currentTimeArgs struct {
	Timezone string `json:"timezone,omitempty" description:"IANA time zone, e.g. Europe/Berlin; defaults to UTC"`
}

func currentTimeTool() tool.Tool {
	return tool.NewFunctionToolFromStruct(
		"current_time",
		"Returns the current time in the given time zone",
		currentTimeArgs{},
		func(_ *tool.Context, args map[string]any) (any, error) {
			name, _ := args["timezone"].(string)
			if name == "" {
				name = "UTC"
			}
			loc, err := time.LoadLocation(name)
			if err != nil {
				return nil, fmt.Errorf("unknown time zone %q", name)
			}
			return map[string]any{
				"timezone": name,
				"time":     time.Now().In(loc).Format(time.RFC3339),
			}, nil
		},
	)
}
