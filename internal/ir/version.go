package ir

// EngineVersion is the dataflow engine version printed by piazza --version.
const EngineVersion = "0.1.0"
