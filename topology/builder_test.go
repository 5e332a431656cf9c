package topology

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildPopulatesSubgraphIndexings(t *testing.T) {
	dep, err := ParseDeploymentID("QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	require.NoError(t, err)

	var sgID SubgraphID
	sgID[0] = 1

	registry := &fakeRegistryClient{records: []SubgraphRecord{
		{
			ID:    sgID,
			Chain: "mainnet",
			Versions: []DeploymentVersionRecord{
				{
					Deployment: dep,
					Indexings: []SubgraphIndexingRecord{
						{Indexer: IndexerID{1}, URL: "http://indexer-a.example", LargestAllocation: [20]byte{9}, AllocatedTokens: 1000},
					},
				},
			},
		},
	}}

	builder := newTestBuilder(registry)
	snapshot, err := builder.Build(context.Background())
	require.NoError(t, err)

	sg, ok := snapshot.Subgraphs[sgID]
	require.True(t, ok)
	require.Len(t, sg.Indexings, 1)

	id := IndexingID{Indexer: IndexerID{1}, Deployment: dep}
	res, ok := sg.Indexings[id]
	require.True(t, ok)
	require.Equal(t, [20]byte{9}, res.Indexing.LargestAllocation)

	require.ElementsMatch(t, []DeploymentID{dep}, snapshot.SubgraphDeployments(sgID))
}

func TestBuildSubgraphIndexingsMergesAcrossVersions(t *testing.T) {
	depOld, err := ParseDeploymentID("QmeYTH2fK2wv96XvnCGH2eyKFE8kmRfo53zYVy5dKysZtH")
	require.NoError(t, err)
	depNew, err := ParseDeploymentID("QmRhc1cgcozynq3JvjNTqALf9mkDLgZ6D6Q2Aj2ydWSLzi")
	require.NoError(t, err)

	var sgID SubgraphID
	sgID[0] = 2

	registry := &fakeRegistryClient{records: []SubgraphRecord{
		{
			ID:    sgID,
			Chain: "mainnet",
			Versions: []DeploymentVersionRecord{
				{Deployment: depNew, Indexings: []SubgraphIndexingRecord{
					{Indexer: IndexerID{2}, URL: "http://indexer-b.example", LargestAllocation: [20]byte{8}, AllocatedTokens: 500},
				}},
				{Deployment: depOld, Indexings: []SubgraphIndexingRecord{
					{Indexer: IndexerID{1}, URL: "http://indexer-a.example", LargestAllocation: [20]byte{9}, AllocatedTokens: 1000},
				}},
			},
		},
	}}

	builder := newTestBuilder(registry)
	snapshot, err := builder.Build(context.Background())
	require.NoError(t, err)

	sg, ok := snapshot.Subgraphs[sgID]
	require.True(t, ok)
	require.Len(t, sg.Indexings, 2)
	require.Contains(t, sg.Indexings, IndexingID{Indexer: IndexerID{1}, Deployment: depOld})
	require.Contains(t, sg.Indexings, IndexingID{Indexer: IndexerID{2}, Deployment: depNew})
}
