// Package kea compiles declarative logic definitions into runnable logic
// instances backed by an external state store.
//
// A Runtime owns three things:
//
//   - a plugin Registry. Every plugin contributes named build steps with
//     optional before/after placement and lifecycle handlers. The merged
//     placements are resolved into one total step order, which every
//     build runs.
//   - an instance cache keyed by identity (the dot-joined state path). A
//     definition resolves to an identity from its path, its key and the
//     props it is built with. Only fully built logics are cached.
//   - mount bookkeeping. Mount is ref-counted and recursive over
//     connections: the reducer is attached on the first mount and
//     detached on the last one.
//
// Basic use:
//
//	rt, _ := kea.NewRuntime(kea.WithStore(store.New()))
//	counter, _ := rt.Define(&kea.Input{
//		Path:    ir.Path{"scenes", "counter"},
//		Actions: map[string]kea.PayloadFunc{"increment": kea.Payload("amount")},
//		Reducers: func(l *kea.Logic) map[string]kea.ReducerDef {
//			return map[string]kea.ReducerDef{"count": {
//				Default: 0,
//				On: map[string]kea.HandlerFunc{
//					l.Type("increment"): func(s, p any) any { return s.(int) + p.(map[string]any)["amount"].(int) },
//				},
//			}}
//		},
//	})
//	l, _ := counter.Logic()
//	l.Actions["increment"](1)
//	l.Value("count") // 1
package kea
