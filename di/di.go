// Package di wires the admission components with samber/do.
package di

import "github.com/samber/do/v2"

type Injector = do.Injector

type RootScope = do.RootScope

// New creates a root injector.
var New = do.New

var NewWithOpts = do.NewWithOpts

// Generic helpers cannot be re-exported as vars; call them through do:
//
//	injector := di.New()
//	di.RegisterCoreProviders(injector, di.ConfigOptions{ConfigPath: "./configs"})
//	factory := do.MustInvoke[*limiter.Factory](injector)
