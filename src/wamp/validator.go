package wamp

import (
	"context"
	"fmt"

	"github.com/gammazero/nexus/v3/client"
	"github.com/gammazero/nexus/v3/wamp"
	"github.com/mosaicnetworks/disputes/src/proxy"
	"github.com/sirupsen/logrus"
)

// ValidatorClient implements the CandidateValidator interface by calling a
// procedure registered by a validation service. The procedure receives the
// JSON-encoded ValidationRequest and returns a boolean verdict.
type ValidatorClient struct {
	client    *client.Client
	procedure string
	logger    *logrus.Entry
}

// NewValidatorClient ...
func NewValidatorClient(cli *client.Client, procedure string, logger *logrus.Entry) *ValidatorClient {
	return &ValidatorClient{
		client:    cli,
		procedure: procedure,
		logger:    logger,
	}
}

// ValidateCandidate implements the CandidateValidator interface.
func (v *ValidatorClient) ValidateCandidate(ctx context.Context, req proxy.ValidationRequest) (bool, error) {
	args, err := jsonArgs(req)
	if err != nil {
		return false, err
	}

	result, err := v.client.Call(ctx, v.procedure, nil, args, nil, nil)
	if err != nil {
		v.logger.WithError(err).WithField("request", req.ID).Debug("ValidateCandidate")
		return false, err
	}

	if len(result.Arguments) != 1 {
		return false, fmt.Errorf("Result should contain 1 argument, not %d", len(result.Arguments))
	}

	valid, ok := wamp.AsBool(result.Arguments[0])
	if !ok {
		return false, fmt.Errorf("Error reading verdict")
	}

	return valid, nil
}

// RegisterValidator registers a procedure which answers ValidationRequests
// with the given CandidateValidator. It is the callee side of ValidatorClient.
func RegisterValidator(cli *client.Client, procedure string, validator proxy.CandidateValidator) error {
	handler := func(ctx context.Context, inv *wamp.Invocation) client.InvokeResult {
		var req proxy.ValidationRequest
		if err := decodeArg(inv, &req); err != nil {
			return errResult(err.Error())
		}

		valid, err := validator.ValidateCandidate(ctx, req)
		if err != nil {
			return errResult(err.Error())
		}

		return client.InvokeResult{
			Args: wamp.List{valid},
		}
	}

	return cli.Register(procedure, handler, nil)
}
