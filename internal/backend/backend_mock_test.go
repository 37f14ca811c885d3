package backend_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/roach88/piazza/internal/backend"
	"github.com/roach88/piazza/internal/engine"
	"github.com/roach88/piazza/internal/ir"
	"github.com/roach88/piazza/internal/mocks"
)

func TestLogin_Protocol(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	writer := mocks.NewMockWriter(mockController)
	uctx := ir.NewContext(ir.P("id", ir.Int(7)), ir.P("role", ir.String("ta")))

	gomock.InOrder(
		handle.EXPECT().CreateUniverse(gomock.Any(), uctx).Return(nil),
		handle.EXPECT().Inputs(gomock.Any()).Return(map[string]engine.NodeID{
			"Post":          1,
			"UserContext_7": 9,
		}, nil),
		handle.EXPECT().Mutator(gomock.Any(), engine.NodeID(9)).Return(writer, nil),
		writer.EXPECT().Put(gomock.Any(), ir.Row{ir.Int(7), ir.String("ta")}).Return(nil),
	)

	b := backend.FromHandle(handle, nil, nil)
	require.NoError(t, b.Login(context.Background(), uctx))
}

func TestLogin_NoRetry(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	boom := errors.New("boom")
	handle.EXPECT().CreateUniverse(gomock.Any(), gomock.Any()).Return(boom).Times(1)

	b := backend.FromHandle(handle, nil, nil)
	err := b.Login(context.Background(), ir.UserContext(4))

	var le *backend.LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, backend.StepUniverse, le.Step)
	assert.Equal(t, "4", le.TenantID)
	assert.ErrorIs(t, err, boom)
}

func TestLogin_MissingContextInput(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	handle.EXPECT().CreateUniverse(gomock.Any(), gomock.Any()).Return(nil)
	handle.EXPECT().Inputs(gomock.Any()).Return(map[string]engine.NodeID{"Post": 1}, nil)

	b := backend.FromHandle(handle, nil, nil)
	err := b.Login(context.Background(), ir.UserContext(4))

	var le *backend.LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, backend.StepResolve, le.Step)
	assert.ErrorIs(t, err, backend.ErrUnknownInput)
}

func TestLogin_WriteRejected(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	writer := mocks.NewMockWriter(mockController)
	handle.EXPECT().CreateUniverse(gomock.Any(), gomock.Any()).Return(nil)
	handle.EXPECT().Inputs(gomock.Any()).Return(map[string]engine.NodeID{"UserContext_4": 2}, nil)
	handle.EXPECT().Mutator(gomock.Any(), engine.NodeID(2)).Return(writer, nil)
	writer.EXPECT().Put(gomock.Any(), gomock.Any()).Return(engine.ErrWriteRejected)

	b := backend.FromHandle(handle, nil, nil)
	err := b.Login(context.Background(), ir.UserContext(4))

	var le *backend.LoginError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, backend.StepWrite, le.Step)
	assert.ErrorIs(t, err, engine.ErrWriteRejected)
}

func TestSize_SumsEveryOutput(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	gomock.InOrder(
		handle.EXPECT().Quiesce(gomock.Any()).Return(nil),
		handle.EXPECT().Outputs(gomock.Any()).Return(map[string]engine.NodeID{
			"posts":    1,
			"posts_u1": 2,
			"posts_u2": 2,
		}, nil),
	)
	for id, n := range map[engine.NodeID]int{1: 10, 2: 4} {
		reader := mocks.NewMockReader(mockController)
		reader.EXPECT().Len(gomock.Any()).Return(n, nil).AnyTimes()
		handle.EXPECT().Getter(gomock.Any(), id).Return(reader, nil).AnyTimes()
	}

	b := backend.FromHandle(handle, nil, nil)
	m, err := b.Materialization(context.Background())
	require.NoError(t, err)
	assert.Equal(t, backend.Materialization{Rows: 18, Views: 3}, m)
	assert.InDelta(t, 6.0, m.Average(), 1e-9)
}

func TestSize_GetterError(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	handle.EXPECT().Quiesce(gomock.Any()).Return(nil)
	handle.EXPECT().Outputs(gomock.Any()).Return(map[string]engine.NodeID{"posts": 1}, nil)
	handle.EXPECT().Getter(gomock.Any(), engine.NodeID(1)).Return(nil, engine.ErrUnknownNode)

	b := backend.FromHandle(handle, nil, nil)
	_, err := b.Size(context.Background())
	assert.ErrorIs(t, err, engine.ErrUnknownNode)
}

func TestSize_QuiescesBeforeCounting(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	handle.EXPECT().Quiesce(gomock.Any()).Return(context.Canceled)

	b := backend.FromHandle(handle, nil, nil)
	_, err := b.Size(context.Background())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWrite_PartialFailure(t *testing.T) {
	mockController := gomock.NewController(t)
	defer mockController.Finish()

	handle := mocks.NewMockHandle(mockController)
	writer := mocks.NewMockWriter(mockController)
	handle.EXPECT().Inputs(gomock.Any()).Return(map[string]engine.NodeID{"Post": 1}, nil)
	handle.EXPECT().Mutator(gomock.Any(), engine.NodeID(1)).Return(writer, nil)
	gomock.InOrder(
		writer.EXPECT().Put(gomock.Any(), ir.Row{ir.Int(1)}).Return(nil),
		writer.EXPECT().Put(gomock.Any(), ir.Row{ir.Int(2)}).Return(engine.ErrWriteRejected),
	)

	b := backend.FromHandle(handle, nil, nil)
	err := b.Write(context.Background(), "Post", ir.Row{ir.Int(1)}, ir.Row{ir.Int(2)}, ir.Row{ir.Int(3)})
	require.ErrorIs(t, err, engine.ErrWriteRejected)
	assert.Contains(t, err.Error(), "row 1")
}
