// Package service exposes a storage.Engine over net/rpc: a
// request/response struct pair per operation, with no extra serialization
// layered on top of encoding/gob. The responses carry no success or error
// field: an error from the engine is returned as the RPC call's own error.
package service

import (
	"net"
	"net/rpc"

	"github.com/davros-labs/ledgerkv/storage"
)

// SetRequest is the argument to Service.Set.
type SetRequest struct {
	Key   int64
	Value []byte
}

// SetResponse reports whether key had a prior live value, and what it was.
type SetResponse struct {
	HadPrior bool
	OldValue []byte
}

// GetRequest is the argument to Service.Get.
type GetRequest struct {
	Key int64
}

// GetResponse reports whether key was found, and its value if so.
type GetResponse struct {
	Exists bool
	Value  []byte
}

// RemoveRequest is the argument to Service.Remove.
type RemoveRequest struct {
	Key int64
}

// RemoveResponse reports whether key had a prior live value, and what it
// was.
type RemoveResponse struct {
	HadPrior bool
	OldValue []byte
}

// Service adapts a *storage.Engine to net/rpc's exported-method
// convention: every method takes (args, *reply) and returns error.
type Service struct {
	engine *storage.Engine
}

// New wraps engine for RPC dispatch. The service does not own engine's
// lifecycle: the caller is responsible for closing it.
func New(engine *storage.Engine) *Service {
	return &Service{engine: engine}
}

// Set stores args.Value for args.Key.
func (s *Service) Set(args SetRequest, resp *SetResponse) error {
	prior, hadPrior, err := s.engine.Set(args.Key, args.Value)
	if err != nil {
		return err
	}
	resp.HadPrior = hadPrior
	resp.OldValue = prior
	return nil
}

// Get looks up args.Key.
func (s *Service) Get(args GetRequest, resp *GetResponse) error {
	value, ok, err := s.engine.Get(args.Key)
	if err != nil {
		return err
	}
	resp.Exists = ok
	resp.Value = value
	return nil
}

// Remove deletes args.Key.
func (s *Service) Remove(args RemoveRequest, resp *RemoveResponse) error {
	prior, hadPrior, err := s.engine.Remove(args.Key)
	if err != nil {
		return err
	}
	resp.HadPrior = hadPrior
	resp.OldValue = prior
	return nil
}

// Serve registers svc under its default net/rpc name and accepts
// connections from listener until it is closed or fails. It blocks;
// callers typically run it in its own goroutine. Accept itself never
// reports an error (net/rpc logs and continues on a per-connection
// failure), so Serve only surfaces registration errors.
func Serve(svc *Service, listener net.Listener) error {
	server := rpc.NewServer()
	if err := server.RegisterName("Service", svc); err != nil {
		return err
	}
	server.Accept(listener)
	return nil
}
