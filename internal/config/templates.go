package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const configTemplate = `# Market Minds Configuration

[workflow]
# Maximum agent -> tools transitions in one turn
max_tool_hops = 8
# Maximum node executions in one turn
max_steps = 50
# Summarize once the history holds more than this many messages
summarize_threshold = 4
# Messages kept in live history after summarizing
keep_messages = 2
# Run the context extraction stage before the agent
extract_context = false
# Upper bound for one turn (e.g., "2m", "90s"); 0 disables
turn_timeout = "2m"

[news]
# Directory of JSON article files for "marketminds ingest"
# ingest_dir = ""
# Directory of the news document store
# store_dir = ""
# Documents returned per search
k = 4
# Candidates considered before diversity re-ranking
fetch_k = 10
# Relevance/diversity balance (1.0 = relevance only)
lambda = 0.5
# Cron schedule for "marketminds ingest --watch"
schedule = "@every 30m"

[market]
# Market data provider: alpaca
provider = "alpaca"
# Alpaca data feed: iex, sip, otc
feed = "iex"
# Requests per second
rate_limit = 3.0
# Cache price history in the local database
cache = true
cache_ttl = "15m"
# Stop calling the provider after this many consecutive failures,
# then retry after the cooldown
breaker_failures = 5
breaker_cooldown = "30s"

[storage]
# SQLite database for checkpoints and caches
# db_path = ""
# Conversation checkpoints: sqlite or memory
checkpoints = "sqlite"

[logging]
# Log level: debug, info, warn, error
level = "info"
# Write rotated log files
file = true

[ui]
# Enable colored output
color_enabled = true
`

const credentialsTemplate = `# Market Minds Credentials
# WARNING: Keep this file secure! Do not commit to version control.
# Environment variables (and .env files) override these values.

[openai]
api_key = ""

[groq]
api_key = ""

[google]
api_key = ""

[anthropic]
api_key = ""

[alpaca]
key_id = ""
secret_key = ""
`

const modelsTemplate = `# Market Minds Model Configuration
# Providers: openai, groq, gemini, anthropic (anthropic serves the text role only)

# Tool-capable conversational model
[agent]
provider = "openai"
model = "gpt-4o-mini"
temperature = 0.0

# Query formulation, summaries, classification and extraction
[text]
provider = "openai"
model = "gpt-4o-mini"
temperature = 0.0

# News embeddings: openai or gemini
[embedding]
provider = "gemini"
model = "text-embedding-004"
dimensions = 768
`

func writeTemplate(configDir, name, content string, perm os.FileMode) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	path := filepath.Join(configDir, name+".toml")
	if err := os.WriteFile(path, []byte(content), perm); err != nil {
		return fmt.Errorf("writing %s template: %w", name, err)
	}
	return nil
}

func createTemplateConfig(configDir string) error {
	return writeTemplate(configDir, "config", configTemplate, 0644)
}

func createTemplateCredentials(configDir string) error {
	// Use restricted permissions for credentials file
	return writeTemplate(configDir, "credentials", credentialsTemplate, 0600)
}

func createTemplateModelConfig(configDir string) error {
	return writeTemplate(configDir, "models", modelsTemplate, 0644)
}
