package broker

type Options struct {
	Name     string
	Addr     string
	Password string
	Exchange string
}

type Option func(*Options)

func OptionWithName(n string) Option {
	return func(o *Options) {
		o.Name = n
	}
}

func OptionWithAddr(a string) Option {
	return func(o *Options) {
		o.Addr = a
	}
}

func OptionWithPassword(p string) Option {
	return func(o *Options) {
		o.Password = p
	}
}

// OptionWithExchange names the exchange used by exchange based brokers.
func OptionWithExchange(e string) Option {
	return func(o *Options) {
		o.Exchange = e
	}
}
