package api

// agentInstallScript is the downloadable forwarder installer. The
// single %s is the server base URL the agent will report to.
const agentInstallScript = `#!/bin/sh
# Anomi log forwarder installer.
# Tails a log file and submits each new line for classification.
set -e

SERVER_URL="%s"
LOG_FILE="${ANOMI_AGENT_LOG_FILE:-/var/log/syslog}"
HOSTNAME="$(hostname)"

echo "Installing Anomi agent (server: $SERVER_URL, tailing: $LOG_FILE)"

cat > /usr/local/bin/anomi-agent <<AGENT
#!/bin/sh
tail -Fn0 "$LOG_FILE" | while read -r line; do
  curl -sf -X POST "$SERVER_URL/api/ingest/log" \
    -H 'Content-Type: application/json' \
    -d "{\"log\": \"\$(printf '%%s' "\$line" | sed 's/\"/\\\\\"/g')\", \"hostname\": \"$HOSTNAME\"}" \
    > /dev/null || true
done
AGENT
chmod +x /usr/local/bin/anomi-agent

echo "Installed. Start with: nohup anomi-agent &"
`
