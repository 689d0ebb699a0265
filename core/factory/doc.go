// Package factory instantiates pluggable modules, such as metric sinks, from
// a type name and a map of raw settings.
//
//	reg := factory.NewRegistry[io.Reader]()
//	_ = reg.Register("file", func(conf map[string]any) (io.Reader, error) {
//	    var c struct{ Path string `json:"path"` }
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return os.Open(c.Path)
//	})
//	r, err := reg.Create(factory.ModuleConfig{Type: "file", Conf: map[string]any{"path": "usage.csv"}})
package factory
