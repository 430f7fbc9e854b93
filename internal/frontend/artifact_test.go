package frontend

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const deployedABI = `[{"inputs":[{"internalType":"uint256","name":"currentBalance","type":"uint256"},{"internalType":"uint256","name":"numPlayers","type":"uint256"},{"internalType":"uint256","name":"raffleState","type":"uint256"}],"name":"Raffle__UpKeepNotNeeded","type":"error"}]`

func writeArtifact(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "deployments", "localhost", "Raffle.json")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestParseArtifactKeepsABIVerbatim(t *testing.T) {
	path := writeArtifact(t, `{"address":"0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0","abi":`+deployedABI+`,"bytecode":"0x60"}`)

	artifact, err := ParseArtifactFile(path)
	require.NoError(t, err)
	require.Equal(t, raffleAddress.Hex(), artifact.Address)
	require.Equal(t, deployedABI, string(artifact.ABI))
}

func TestSyncPublishesArtifactABI(t *testing.T) {
	path := writeArtifact(t, `{"contractName":"Raffle","abi":`+deployedABI+`}`)
	artifact, err := ParseArtifactFile(path)
	require.NoError(t, err)

	s := newSyncer(t)
	require.NoError(t, s.Sync(31337, raffleAddress, artifact.ABI))

	abiData, err := os.ReadFile(s.ABIFile)
	require.NoError(t, err)
	require.Equal(t, deployedABI, string(abiData))
}

func TestParseArtifactRejectsMissingABI(t *testing.T) {
	_, err := ParseArtifactFile(writeArtifact(t, `{"contractName":"Raffle"}`))
	require.ErrorContains(t, err, "invalid 'abi' field")

	_, err = ParseArtifactFile(writeArtifact(t, `{"abi":{"not":"a list"}}`))
	require.ErrorContains(t, err, "invalid 'abi' field")

	_, err = ParseArtifactFile(writeArtifact(t, `{broken`))
	require.ErrorContains(t, err, "parse artifact")

	_, err = ParseArtifactFile(filepath.Join(t.TempDir(), "missing.json"))
	require.ErrorContains(t, err, "read artifact")
}
