package scoring

// DefaultModel returns the starting scoring model used when no model file
// exists yet. Weights drift from these values as refinement cycles run.
func DefaultModel() *Model {
	return &Model{
		Signals: map[string]map[string]*SignalDef{
			"AI_AGENT_MATURITY": {
				SignalAgentProd: {
					Keywords:    []string{"production agents", "agent governance", "autonomous workflows", "multi agent", "orchestration systems"},
					Points:      10,
					Description: "Agents running in production",
				},
				SignalAgentCore: {
					Keywords:    []string{"agent framework", "prompt execution", "copilot", "workflow automation"},
					Points:      8,
					Description: "Agentic capability under active development",
				},
				SignalLLMAPI: {
					Keywords:    []string{"openai api", "anthropic", "langchain", "crewai", "llm integration"},
					Points:      5,
					Description: "LLM API usage",
				},
				SignalAIExp: {
					Keywords:    []string{"ai startup", "exploring ai", "ai powered"},
					Points:      3,
					Description: "Early AI experimentation",
				},
			},
			"MARKET_POSITION": {
				SignalHiringAI: {
					Keywords:    []string{"ai engineer", "ml engineer", "agent engineer", "prompt engineer"},
					Points:      4,
					Description: "Hiring for AI roles",
				},
			},
			"ENTERPRISE_RISK": {
				"COMP_L": {
					Keywords:    []string{"soc2", "hipaa", "gdpr", "pci-dss", "fedramp"},
					Points:      4,
					Description: "Compliance framework exposure",
				},
			},
		},
		Thresholds: Thresholds{HighFit: 15, MediumFit: 8},
	}
}
