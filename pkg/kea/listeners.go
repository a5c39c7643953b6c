package kea

import "github.com/cyrke/kea/internal/ir"

// ListenersPluginName names the listeners plugin.
const ListenersPluginName = "listeners"

// StepListeners runs after the core events step.
const StepListeners = "listeners"

// ListenerFunc runs after an action of the type it is registered for has
// been reduced. It may dispatch further actions through l.Actions.
type ListenerFunc func(l *Logic, payload any)

const listenersField = "listeners"

// ListenersPlugin runs side effects for dispatched actions while a logic
// is mounted. Listeners are keyed by action type; use Logic.Type to key
// by action name.
func ListenersPlugin() *Plugin {
	return &Plugin{
		Name: ListenersPluginName,
		Steps: []Step{
			{Name: StepListeners, After: StepEvents, Run: listenersStep},
		},
		Events: map[Phase]EventFunc{
			AfterMount:    subscribeListeners,
			BeforeUnmount: unsubscribeListeners,
		},
		Defaults: func() map[string]any {
			return map[string]any{listenersField: map[string][]ListenerFunc{}}
		},
	}
}

func listenersStep(l *Logic, in *Input, _ *BuildContext) error {
	if in.Listeners == nil {
		return nil
	}
	byType := make(map[string][]ListenerFunc)
	for key, fns := range in.Listeners(l) {
		// Allow action names as well as full types.
		if t := l.Type(key); t != "" {
			key = t
		}
		byType[key] = append(byType[key], fns...)
	}
	l.Extra[listenersField] = byType
	return nil
}

func subscribeListeners(ev *Event) {
	l := ev.Logic
	byType, _ := l.Extra[listenersField].(map[string][]ListenerFunc)
	store := ev.Runtime.Store()
	if len(byType) == 0 || store == nil {
		return
	}
	l.Cache["listeners.unsubscribe"] = store.Subscribe(func(a ir.Action) {
		for _, fn := range byType[a.Type] {
			fn(l, a.Payload)
		}
	})
}

func unsubscribeListeners(ev *Event) {
	l := ev.Logic
	if unsub, ok := l.Cache["listeners.unsubscribe"].(func()); ok {
		unsub()
		delete(l.Cache, "listeners.unsubscribe")
	}
}
